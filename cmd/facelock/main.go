// facelock runs the single target face tracking pipeline on a camera or
// video source and serves the annotated feed over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "facelock",
	Short: "Single target face tracking with identity lock",
	Long: `Facelock detects faces in a video stream, verifies them against an
enrolled identity and locks onto the matching face, following it across
frames until it is lost.  The annotated feed is served over HTTP as an
MJPEG stream together with enrollment and lock control endpoints.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to YAML config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
