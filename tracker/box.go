// Package tracker provides the bounding box geometry, motion models and
// track lifecycle state machines used to follow faces across video frames.
package tracker

import (
	"math"
)

// Point represents a 2D landmark coordinate in normalized [0,1] image space
type Point struct {
	X, Y float32
}

// Box is a detection bounding box in center-size representation with all
// coordinates normalized to [0,1] of the image frame.  A Box optionally
// carries facial landmark keypoints (eyes, nose, mouth corners) which are
// used downstream for face alignment
type Box struct {
	// X is the box center x coordinate
	X float32
	// Y is the box center y coordinate
	Y float32
	// W is the box width
	W float32
	// H is the box height
	H float32
	// Prob is the detection confidence/probability of the box
	Prob float32
	// Landmarks are the optional facial keypoints of the detection
	Landmarks []Point
}

// NewBox creates a new Box from center coordinates and size
func NewBox(x, y, w, h, prob float32) Box {
	return Box{X: x, Y: y, W: w, H: h, Prob: prob}
}

// TLX returns the top-left x coordinate of the box
func (b *Box) TLX() float32 {
	return b.X - b.W/2
}

// TLY returns the top-left y coordinate of the box
func (b *Box) TLY() float32 {
	return b.Y - b.H/2
}

// BRX returns the bottom-right x coordinate of the box
func (b *Box) BRX() float32 {
	return b.X + b.W/2
}

// BRY returns the bottom-right y coordinate of the box
func (b *Box) BRY() float32 {
	return b.Y + b.H/2
}

// Area returns the box area.  Boxes with non-positive width or height have
// zero area and are treated as invalid by all geometry operations
func (b *Box) Area() float32 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Clone returns a deep copy of the box including its landmarks
func (b *Box) Clone() Box {
	c := *b
	if b.Landmarks != nil {
		c.Landmarks = make([]Point, len(b.Landmarks))
		copy(c.Landmarks, b.Landmarks)
	}
	return c
}

// IoU calculates the Intersection over Union between two boxes.  It returns
// 0 if either box has non-positive area or if the boxes do not overlap
func IoU(a, b Box) float32 {

	area0 := a.Area()
	area1 := b.Area()

	if area0 <= 0 || area1 <= 0 {
		return 0
	}

	iw := minf(a.BRX(), b.BRX()) - maxf(a.TLX(), b.TLX())
	ih := minf(a.BRY(), b.BRY()) - maxf(a.TLY(), b.TLY())

	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih

	return inter / (area0 + area1 - inter)
}

// CentroidDistance returns the euclidean distance between the centers of
// two boxes
func CentroidDistance(a, b Box) float32 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
