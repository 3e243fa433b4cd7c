package detect

import (
	"github.com/edgelock/go-facelock/tracker"
)

// Anchor is a prior box of an anchor based detection head in normalized
// center-size form
type Anchor struct {
	X, Y, W, H float32
}

// GenerateAnchors creates the prior boxes of a BlazeFace detection head
// for the given input tensor size.  The network uses two feature maps, a
// 16x16 grid with 2 anchors per cell at stride 8 and an 8x8 grid with 6
// anchors per cell at stride 16.  Anchors are normalized to [0,1]
func GenerateAnchors(width int) []Anchor {

	anchors := make([]Anchor, 0, 896)
	sizes := []float32{0.25, 0.5}

	grid1 := width / 8
	step := 1.0 / float32(grid1)
	offset := step / 2

	for y := 0; y < grid1; y++ {
		for x := 0; x < grid1; x++ {
			cx := offset + float32(x)*step
			cy := offset + float32(y)*step
			for _, size := range sizes {
				anchors = append(anchors, Anchor{X: cx, Y: cy, W: size, H: size})
			}
		}
	}

	grid2 := width / 16
	step = 1.0 / float32(grid2)
	offset = step / 2

	for y := 0; y < grid2; y++ {
		for x := 0; x < grid2; x++ {
			cx := offset + float32(x)*step
			cy := offset + float32(y)*step
			// the second feature map duplicates its anchors for each
			// keypoint group
			for d := 0; d < 3; d++ {
				for _, size := range sizes {
					anchors = append(anchors, Anchor{X: cx, Y: cy, W: size, H: size})
				}
			}
		}
	}

	return anchors
}

// DecodeBlazeFace decodes the raw regressor and score tensors of a
// BlazeFace detection head against the given anchors into normalized
// boxes.  Each regressor row holds [dy, dx, h, w] followed by keypoint
// (y, x) pairs, all in input pixel units relative to the anchor center.
// Scores are raw logits.  Returned boxes are NMS filtered, ordered by
// descending confidence and capped at MaxBoxes
func DecodeBlazeFace(raw, scores []float32, anchors []Anchor, p Params) []tracker.Box {

	boxes := make([]tracker.Box, 0)
	size := float32(p.InputSize)
	stride := 4 + p.Keypoints*2

	for i, a := range anchors {

		score := sigmoid(scores[i])

		if score <= p.ConfThreshold {
			continue
		}

		row := raw[i*stride : (i+1)*stride]

		box := tracker.Box{
			X:    a.X + row[1]/size*a.W,
			Y:    a.Y + row[0]/size*a.H,
			W:    row[3] / size * a.W,
			H:    row[2] / size * a.H,
			Prob: score,
		}

		if p.Keypoints > 0 {
			box.Landmarks = make([]tracker.Point, p.Keypoints)

			for j := 0; j < p.Keypoints; j++ {
				box.Landmarks[j] = tracker.Point{
					X: a.X + row[4+j*2+1]/size*a.W,
					Y: a.Y + row[4+j*2+0]/size*a.H,
				}
			}
		}

		boxes = append(boxes, box)
	}

	return capBoxes(NMS(boxes, p.NMSThreshold), p.MaxBoxes)
}
