package detect

import (
	"fmt"
	"image"

	"github.com/edgelock/go-facelock/tracker"
	"gocv.io/x/gocv"
)

// Variant selects the decoding scheme used to interpret a detection
// model's output tensors
type Variant int

const (
	// CenterFace is a heatmap based detection head with stride 4 grid
	// outputs for score, scale, offset and landmarks
	CenterFace Variant = iota
	// BlazeFace is an anchor based detection head with a single regressor
	// tensor and a score tensor
	BlazeFace
)

// Detector runs a face detection model over video frames using the OpenCV
// DNN backend and decodes its output tensors into normalized boxes
type Detector struct {
	net     gocv.Net
	variant Variant
	params  Params
	// outNames are the model output layers fetched on each forward pass
	outNames []string
	// anchors are the prior boxes of an anchor based head, nil for grid
	// based heads
	anchors []Anchor
}

// NewDetector loads an ONNX face detection model from the given file.
// outNames specifies the output layer names in decoder order, for
// CenterFace heatmap, scale, offset and landmarks, for BlazeFace
// regressors then scores
func NewDetector(modelFile string, variant Variant, p Params,
	outNames []string) (*Detector, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		return nil, fmt.Errorf("error loading detection model from %s", modelFile)
	}

	d := &Detector{
		net:      net,
		variant:  variant,
		params:   p,
		outNames: outNames,
	}

	if variant == BlazeFace {
		d.anchors = GenerateAnchors(p.InputSize)
	}

	return d, nil
}

// Detect runs the detection model on the given frame and returns the
// decoded face boxes in normalized coordinates, ordered by descending
// confidence
func (d *Detector) Detect(frame gocv.Mat) ([]tracker.Box, error) {

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	sz := image.Pt(d.params.InputSize, d.params.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, sz,
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	outputs := d.net.ForwardLayers(d.outNames)

	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	tensors := make([][]float32, len(outputs))

	for i := range outputs {
		data, err := outputs[i].DataPtrFloat32()

		if err != nil {
			return nil, fmt.Errorf("error reading output tensor %s: %w",
				d.outNames[i], err)
		}

		// copy out of the Mat backing store before it is closed
		tensors[i] = append([]float32(nil), data...)
	}

	switch d.variant {

	case CenterFace:
		if len(tensors) < 3 {
			return nil, fmt.Errorf("expected at least 3 output tensors, got %d",
				len(tensors))
		}

		var lms []float32

		if len(tensors) > 3 {
			lms = tensors[3]
		}

		grid := d.params.InputSize / 4
		return DecodeCenterFace(tensors[0], tensors[1], tensors[2], lms,
			grid, d.params), nil

	case BlazeFace:
		if len(tensors) < 2 {
			return nil, fmt.Errorf("expected 2 output tensors, got %d",
				len(tensors))
		}

		return DecodeBlazeFace(tensors[0], tensors[1], d.anchors,
			d.params), nil
	}

	return nil, fmt.Errorf("unknown detector variant %d", d.variant)
}

// Close frees the resources of the detection model
func (d *Detector) Close() error {
	return d.net.Close()
}
