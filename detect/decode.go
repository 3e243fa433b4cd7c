// Package detect runs face detection models and decodes their output
// tensors into normalized bounding boxes with landmark keypoints.
package detect

import (
	"math"
	"sort"

	"github.com/edgelock/go-facelock/tracker"
)

// Params defines the post processing parameters of a face detection head
type Params struct {
	// ConfThreshold is the minimum probability score required for a
	// bounding box region to be considered for processing
	ConfThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for
	// defining the maximum allowed Intersection Over Union (IoU) between
	// two bounding boxes for both to be kept
	NMSThreshold float32
	// MaxBoxes is the maximum number of detections that can be returned
	MaxBoxes int
	// Keypoints is the number of face landmark keypoints decoded per box
	Keypoints int
	// InputSize is the square model input tensor size in pixels
	InputSize int
}

// CenterFaceParams returns the parameters for a CenterFace style detection
// head with a 128x128 input tensor
func CenterFaceParams() Params {
	return Params{
		ConfThreshold: 0.5,
		NMSThreshold:  0.3,
		MaxBoxes:      10,
		Keypoints:     5,
		InputSize:     128,
	}
}

// BlazeFaceParams returns the parameters for a BlazeFace style detection
// head with a 128x128 input tensor
func BlazeFaceParams() Params {
	return Params{
		ConfThreshold: 0.5,
		NMSThreshold:  0.3,
		MaxBoxes:      10,
		Keypoints:     6,
		InputSize:     128,
	}
}

// DecodeCenterFace decodes the heatmap, scale, offset and landmark output
// tensors of a CenterFace detection head (stride 4, grid x grid cells)
// into normalized boxes.  The landmark tensor may be nil for models
// without a landmark head.  Returned boxes are NMS filtered, ordered by
// descending confidence and capped at MaxBoxes
func DecodeCenterFace(heatmap, scales, offsets, lms []float32, grid int, p Params) []tracker.Box {

	boxes := make([]tracker.Box, 0)
	size := float32(grid * 4)

	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {

			idx := y*grid + x
			score := heatmap[idx]

			if score <= p.ConfThreshold {
				continue
			}

			s0 := float32(math.Exp(float64(scales[idx*2+0]))) * 4.0
			s1 := float32(math.Exp(float64(scales[idx*2+1]))) * 4.0
			o0 := offsets[idx*2+0]
			o1 := offsets[idx*2+1]

			x1 := (float32(x)+o1+0.5)*4.0 - s1/2.0
			y1 := (float32(y)+o0+0.5)*4.0 - s0/2.0

			if x1 < 0 {
				x1 = 0
			}
			if y1 < 0 {
				y1 = 0
			}

			x2 := x1 + s1
			y2 := y1 + s0

			box := tracker.Box{
				X:    (x1 + x2) * 0.5 / size,
				Y:    (y1 + y2) * 0.5 / size,
				W:    s1 / size,
				H:    s0 / size,
				Prob: score,
			}

			if lms != nil && p.Keypoints > 0 {
				box.Landmarks = make([]tracker.Point, p.Keypoints)

				for j := 0; j < p.Keypoints; j++ {
					lmY := lms[idx*p.Keypoints*2+j*2+0]
					lmX := lms[idx*p.Keypoints*2+j*2+1]
					box.Landmarks[j] = tracker.Point{
						X: (lmX*s1 + x1) / size,
						Y: (lmY*s0 + y1) / size,
					}
				}
			}

			boxes = append(boxes, box)
		}
	}

	return capBoxes(NMS(boxes, p.NMSThreshold), p.MaxBoxes)
}

// NMS implements Non-Maximum Suppression over the boxes, keeping the
// highest confidence box of each overlapping group.  The result is ordered
// by descending confidence
func NMS(boxes []tracker.Box, threshold float32) []tracker.Box {

	if len(boxes) == 0 {
		return boxes
	}

	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return boxes[order[a]].Prob > boxes[order[b]].Prob
	})

	suppressed := make([]bool, len(boxes))
	keep := make([]tracker.Box, 0, len(boxes))

	for i, oi := range order {
		if suppressed[oi] {
			continue
		}

		keep = append(keep, boxes[oi])

		for _, oj := range order[i+1:] {
			if suppressed[oj] {
				continue
			}
			if tracker.IoU(boxes[oi], boxes[oj]) >= threshold {
				suppressed[oj] = true
			}
		}
	}

	return keep
}

// capBoxes bounds the result list to the maximum output size
func capBoxes(boxes []tracker.Box, max int) []tracker.Box {
	if max > 0 && len(boxes) > max {
		return boxes[:max]
	}
	return boxes
}

// sigmoid maps a raw logit into (0,1), clamping extreme values first
func sigmoid(x float32) float32 {
	if x < -100 {
		x = -100
	} else if x > 100 {
		x = 100
	}
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
