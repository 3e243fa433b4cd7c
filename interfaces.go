package facelock

import (
	"image"

	"github.com/edgelock/go-facelock/tracker"
	"gocv.io/x/gocv"
)

// Detector finds faces in a video frame and returns their bounding boxes
// in normalized coordinates, ordered by descending confidence
type Detector interface {
	Detect(frame gocv.Mat) ([]tracker.Box, error)
}

// Embedder produces an L2-normalized embedding vector for the face inside
// the given frame region.  eyes optionally holds the left and right eye
// positions in frame pixel coordinates used for alignment
type Embedder interface {
	Embed(frame gocv.Mat, region image.Rectangle, eyes []image.Point) ([]float32, error)
}
