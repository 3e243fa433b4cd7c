package embed

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Embedder runs a face recognition model over aligned face crops using the
// OpenCV DNN backend and returns L2-normalized embedding vectors
type Embedder struct {
	net gocv.Net
	// scaleSize is the size of the input tensor dimensions to scale the
	// face crop to
	scaleSize image.Point
	size      int
}

// NewEmbedder loads an ONNX face recognition model from the given file.
// input is the square model input tensor size in pixels and size the
// output embedding dimensionality
func NewEmbedder(modelFile string, input, size int) (*Embedder, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		return nil, fmt.Errorf("error loading recognition model from %s", modelFile)
	}

	if input <= 0 {
		input = 112
	}
	if size <= 0 {
		size = VectorSize
	}

	return &Embedder{
		net:       net,
		scaleSize: image.Pt(input, input),
		size:      size,
	}, nil
}

// Embed crops the face region from the frame, optionally rotates it so the
// eye landmarks are level, and runs the recognition model on the aligned
// crop.  The returned embedding is L2-normalized.  eyes holds the left and
// right eye positions in frame pixel coordinates and may be nil to skip
// alignment
func (e *Embedder) Embed(frame gocv.Mat, region image.Rectangle,
	eyes []image.Point) ([]float32, error) {

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	region = region.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))

	if region.Dx() <= 0 || region.Dy() <= 0 {
		return nil, fmt.Errorf("face region outside frame bounds")
	}

	faceRoi := frame.Region(region)
	face := gocv.NewMat()
	defer face.Close()

	if len(eyes) >= 2 {
		aligned := alignByEyes(faceRoi, eyes)
		aligned.CopyTo(&face)
		aligned.Close()
	} else {
		faceRoi.CopyTo(&face)
	}

	faceRoi.Close()

	blob := gocv.BlobFromImage(face, 1.0/128.0, e.scaleSize,
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")

	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading embedding tensor: %w", err)
	}

	if len(data) < e.size {
		return nil, fmt.Errorf("embedding tensor too small, got %d want %d",
			len(data), e.size)
	}

	return NormalizeVec(data[:e.size]), nil
}

// Close frees the resources of the recognition model
func (e *Embedder) Close() error {
	return e.net.Close()
}

// alignByEyes rotates the face crop around its center so the line between
// the two eye landmarks becomes horizontal
func alignByEyes(face gocv.Mat, eyes []image.Point) gocv.Mat {

	dy := float64(eyes[1].Y - eyes[0].Y)
	dx := float64(eyes[1].X - eyes[0].X)
	angle := math.Atan2(dy, dx) * 180.0 / math.Pi

	center := image.Pt(face.Cols()/2, face.Rows()/2)

	rot := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer rot.Close()

	dst := gocv.NewMat()
	gocv.WarpAffine(face, &dst, rot, image.Pt(face.Cols(), face.Rows()))

	return dst
}
