package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	facelock "github.com/edgelock/go-facelock"
	"github.com/edgelock/go-facelock/detect"
	"github.com/edgelock/go-facelock/embed"
	"github.com/edgelock/go-facelock/render"
	"github.com/edgelock/go-facelock/stream"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the face tracking pipeline",
	Long: `Run opens the camera or video source, starts the face tracking
pipeline and serves the annotated feed on the configured HTTP address.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "Camera device index or video file, overrides config")
	runCmd.Flags().String("addr", "", "HTTP listen address, overrides config")
}

func runPipeline(cmd *cobra.Command, args []string) error {

	cfg := facelock.DefaultConfig()

	if configFile != "" {
		var err error

		cfg, err = facelock.LoadConfig(configFile)

		if err != nil {
			return err
		}
	}

	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Camera.Device = source
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Stream.Addr = addr
	}

	if cfg.Detector.Model == "" {
		return fmt.Errorf("no detection model configured")
	}
	if cfg.Recognition.Model == "" {
		return fmt.Errorf("no recognition model configured")
	}

	variant, err := cfg.DetectVariant()

	if err != nil {
		return err
	}

	detector, err := detect.NewDetector(cfg.Detector.Model, variant,
		cfg.DetectParams(), cfg.Detector.OutputNames)

	if err != nil {
		return err
	}

	defer detector.Close()

	embedder, err := embed.NewEmbedder(cfg.Recognition.Model,
		cfg.Recognition.InputSize, cfg.Recognition.VectorSize)

	if err != nil {
		return err
	}

	defer embedder.Close()

	pipeline := facelock.NewPipeline(cfg, detector, embedder)

	capture, err := gocv.OpenVideoCapture(cfg.Camera.Device)

	if err != nil {
		return fmt.Errorf("error opening video source %s: %w",
			cfg.Camera.Device, err)
	}

	defer capture.Close()

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Camera.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Camera.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Camera.FPS))

	// latest holds the most recent camera frame for the enrollment
	// endpoint
	latest := gocv.NewMat()
	defer latest.Close()

	var latestMu sync.Mutex

	enroll := func() (int, error) {

		latestMu.Lock()
		defer latestMu.Unlock()

		if latest.Empty() {
			return pipeline.EnrolledCount(), fmt.Errorf("no frame captured yet")
		}

		return pipeline.EnrollStrongest(latest)
	}

	var server *stream.Server

	if cfg.Stream.Addr != "" {
		server = stream.NewServer(cfg.Stream.Addr, pipeline, enroll)

		go func() {
			if err := server.Start(); err != nil {
				log.Printf("stream server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("shutting down")
		cancel()
	}()

	var label *render.TTFLabel

	if cfg.Render.FontFile != "" {
		label, err = render.NewTTFLabel(cfg.Render.FontFile, cfg.Render.FontSize)

		if err != nil {
			return err
		}

		defer label.Close()
	}

	log.Printf("pipeline running on source %s", cfg.Camera.Device)

	ann := &annotator{
		font:  render.DefaultFont(),
		trail: render.NewTrail(cfg.Render.TrailLength, render.DefaultTrailStyle()),
		label: label,
		name:  cfg.Render.Label,
	}

	err = processFrames(ctx, capture, pipeline, server, ann, &latest, &latestMu)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer shutdownCancel()

		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Printf("error during shutdown: %v", serr)
		}
	}

	avg := pipeline.Stats().Average()
	log.Printf("processed %d frames, avg %.1fms detect, %.1fms embed, %.1fms track",
		pipeline.Stats().Frames(),
		float64(avg.Detect)/float64(time.Millisecond),
		float64(avg.Embed)/float64(time.Millisecond),
		float64(avg.Track)/float64(time.Millisecond))

	return err
}

// processFrames runs the capture loop until the context is cancelled or
// the video source ends
func processFrames(ctx context.Context, capture *gocv.VideoCapture,
	pipeline *facelock.Pipeline, server *stream.Server, ann *annotator,
	latest *gocv.Mat, latestMu *sync.Mutex) error {

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if ok := capture.Read(&img); !ok {
			// end of video source
			return nil
		}

		if img.Empty() {
			continue
		}

		latestMu.Lock()
		img.CopyTo(latest)
		latestMu.Unlock()

		res, err := pipeline.Process(img, time.Now())

		if err != nil {
			log.Printf("frame processing error: %v", err)
			continue
		}

		if server == nil {
			continue
		}

		ann.annotate(&img, res)

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)

		if err != nil {
			log.Printf("error encoding frame: %v", err)
			continue
		}

		server.Publish(append([]byte(nil), buf.GetBytes()...))
		buf.Close()
	}
}

// annotator draws the detections, target box, trail and status line onto
// frames
type annotator struct {
	font  render.Font
	trail *render.Trail
	// label optionally draws the target's display name with a TTF face
	label *render.TTFLabel
	name  string
}

func (a *annotator) annotate(img *gocv.Mat, res facelock.Result) {

	render.FaceBoxes(img, res.Detections, a.font, 2)
	render.FaceLandmarks(img, res.Detections, 2)

	if res.Locked {
		a.trail.Push(res.Target, img.Cols(), img.Rows())
		render.TargetBox(img, res.Target, res.Similarity, a.font, 2)

		if a.label != nil && a.name != "" {
			x := int(res.Target.TLX() * float32(img.Cols()))
			y := int(res.Target.BRY()*float32(img.Rows())) + 20

			if err := a.label.Draw(img, a.name, x, y, render.Green); err != nil {
				log.Printf("error drawing label: %v", err)
			}
		}
	} else {
		a.trail.Clear()
	}

	a.trail.Draw(img)

	render.HUD(img, res.Phase.String(), int(res.Phase), res.Similarity,
		float32(res.Timing.Total)/float32(time.Millisecond), a.font)
}
