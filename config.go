package facelock

import (
	"fmt"
	"os"
	"time"

	"github.com/edgelock/go-facelock/detect"
	"github.com/edgelock/go-facelock/tracker"
	"gopkg.in/yaml.v3"
)

// CameraConfig defines the video capture device settings
type CameraConfig struct {
	// Device is the capture device index or stream source
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// DetectorConfig defines the face detection model settings
type DetectorConfig struct {
	// Model is the path to the ONNX detection model file
	Model string `yaml:"model"`
	// Variant selects the decoder, "centerface" or "blazeface"
	Variant string `yaml:"variant"`
	// OutputNames are the model output layer names in decoder order
	OutputNames   []string `yaml:"output_names"`
	InputSize     int      `yaml:"input_size"`
	ConfThreshold float32  `yaml:"conf_threshold"`
	NMSThreshold  float32  `yaml:"nms_threshold"`
	MaxBoxes      int      `yaml:"max_boxes"`
}

// RecognitionConfig defines the face recognition model and enrollment
// settings
type RecognitionConfig struct {
	// Model is the path to the ONNX recognition model file
	Model string `yaml:"model"`
	// InputSize is the square input tensor size of the recognition model
	InputSize int `yaml:"input_size"`
	// VectorSize is the embedding dimensionality
	VectorSize int `yaml:"vector_size"`
	// BankCapacity is the maximum number of enrollment samples
	BankCapacity int `yaml:"bank_capacity"`
	// SimilarityThreshold is the minimum cosine similarity against the
	// enrollment target for a verification to pass
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	// ReverifyIntervalMS is how long in milliseconds a locked track may
	// run before its identity is checked again
	ReverifyIntervalMS int `yaml:"reverify_interval_ms"`
}

// TrackConfig defines the locked track lifecycle settings
type TrackConfig struct {
	// ConfThreshold is the minimum detection confidence for matching the
	// locked track directly
	ConfThreshold float32 `yaml:"conf_threshold"`
	// SmoothAlpha is the exponential moving average weight given to new
	// measurements
	SmoothAlpha float32 `yaml:"smooth_alpha"`
	// IoUThreshold is the minimum overlap for re-acquiring the track from
	// a low confidence detection
	IoUThreshold float32 `yaml:"iou_threshold"`
	// MaxMisses is the number of consecutive missed frames tolerated
	// before the track is dropped
	MaxMisses int `yaml:"max_misses"`
}

// RenderConfig defines the frame annotation settings
type RenderConfig struct {
	// Label is the display name drawn over the locked target box
	Label string `yaml:"label"`
	// FontFile is a TTF font used to draw the label, needed for names in
	// non Latin scripts.  Empty uses the built in Hershey font
	FontFile string `yaml:"font_file"`
	// FontSize is the TTF point size
	FontSize float64 `yaml:"font_size"`
	// TrailLength is the number of target positions kept in the motion
	// trail
	TrailLength int `yaml:"trail_length"`
}

// StreamConfig defines the HTTP debug stream settings
type StreamConfig struct {
	// Addr is the listen address of the MJPEG stream server, empty
	// disables streaming
	Addr string `yaml:"addr"`
}

// Config holds all pipeline settings
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Track       TrackConfig       `yaml:"track"`
	Render      RenderConfig      `yaml:"render"`
	Stream      StreamConfig      `yaml:"stream"`
}

// DefaultConfig returns the pipeline settings with their default values
func DefaultConfig() Config {
	return Config{
		Camera: CameraConfig{
			Device: "0",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Detector: DetectorConfig{
			Variant:       "centerface",
			InputSize:     128,
			ConfThreshold: 0.5,
			NMSThreshold:  0.3,
			MaxBoxes:      10,
		},
		Recognition: RecognitionConfig{
			InputSize:           112,
			VectorSize:          128,
			BankCapacity:        10,
			SimilarityThreshold: 0.55,
			ReverifyIntervalMS:  1000,
		},
		Track: TrackConfig{
			ConfThreshold: 0.7,
			SmoothAlpha:   0.5,
			IoUThreshold:  0.3,
			MaxMisses:     5,
		},
		Render: RenderConfig{
			FontSize:    16,
			TrailLength: 90,
		},
		Stream: StreamConfig{
			Addr: ":8080",
		},
	}
}

// LoadConfig reads pipeline settings from a YAML file, falling back to
// defaults for any field not set
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ReverifyInterval returns the re-verification interval as a duration
func (c Config) ReverifyInterval() time.Duration {
	return time.Duration(c.Recognition.ReverifyIntervalMS) * time.Millisecond
}

// DetectParams converts the detector settings into decoder parameters
func (c Config) DetectParams() detect.Params {

	p := detect.CenterFaceParams()

	if c.Detector.Variant == "blazeface" {
		p = detect.BlazeFaceParams()
	}

	if c.Detector.InputSize > 0 {
		p.InputSize = c.Detector.InputSize
	}
	if c.Detector.ConfThreshold > 0 {
		p.ConfThreshold = c.Detector.ConfThreshold
	}
	if c.Detector.NMSThreshold > 0 {
		p.NMSThreshold = c.Detector.NMSThreshold
	}
	if c.Detector.MaxBoxes > 0 {
		p.MaxBoxes = c.Detector.MaxBoxes
	}

	return p
}

// DetectVariant converts the configured variant name into the decoder
// selector
func (c Config) DetectVariant() (detect.Variant, error) {

	switch c.Detector.Variant {
	case "", "centerface":
		return detect.CenterFace, nil
	case "blazeface":
		return detect.BlazeFace, nil
	}

	return 0, fmt.Errorf("unknown detector variant %q", c.Detector.Variant)
}

// TrackParams converts the track settings into track lifecycle parameters
func (c Config) TrackParams() tracker.TrackParams {

	p := tracker.DefaultTrackParams()

	if c.Track.ConfThreshold > 0 {
		p.ConfThreshold = c.Track.ConfThreshold
	}
	if c.Track.SmoothAlpha > 0 {
		p.SmoothAlpha = c.Track.SmoothAlpha
	}
	if c.Track.IoUThreshold > 0 {
		p.IoUThreshold = c.Track.IoUThreshold
	}
	if c.Track.MaxMisses > 0 {
		p.MaxMisses = c.Track.MaxMisses
	}
	if c.Detector.MaxBoxes > 0 {
		p.MaxOutputBoxes = c.Detector.MaxBoxes
	}

	return p
}
