package detect

import (
	"math"
	"testing"

	"github.com/edgelock/go-facelock/tracker"
)

func feq(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestDecodeCenterFaceSingleCell(t *testing.T) {

	p := CenterFaceParams()
	p.Keypoints = 0
	grid := 32

	heatmap := make([]float32, grid*grid)
	scales := make([]float32, grid*grid*2)
	offsets := make([]float32, grid*grid*2)

	// one hot cell at (x=10, y=8) with zero scale logits and offsets,
	// which decodes to a 4x4 pixel box on the 128 pixel plane
	heatmap[8*grid+10] = 0.9

	boxes := DecodeCenterFace(heatmap, scales, offsets, nil, grid, p)

	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	b := boxes[0]

	if !feq(b.Prob, 0.9) {
		t.Errorf("expected prob 0.9, got %f", b.Prob)
	}
	if !feq(b.X, 42.0/128.0) || !feq(b.Y, 34.0/128.0) {
		t.Errorf("unexpected center (%f, %f)", b.X, b.Y)
	}
	if !feq(b.W, 4.0/128.0) || !feq(b.H, 4.0/128.0) {
		t.Errorf("unexpected size (%f, %f)", b.W, b.H)
	}
}

func TestDecodeCenterFaceScale(t *testing.T) {

	p := CenterFaceParams()
	p.Keypoints = 0
	grid := 32

	heatmap := make([]float32, grid*grid)
	scales := make([]float32, grid*grid*2)
	offsets := make([]float32, grid*grid*2)

	idx := 16*grid + 16
	heatmap[idx] = 0.8

	// scale logits pass through exp() then multiply by the stride, so
	// ln(8) decodes to a 32 pixel extent
	scales[idx*2+0] = float32(math.Log(8))
	scales[idx*2+1] = float32(math.Log(8))

	boxes := DecodeCenterFace(heatmap, scales, offsets, nil, grid, p)

	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	if !feq(boxes[0].W, 32.0/128.0) || !feq(boxes[0].H, 32.0/128.0) {
		t.Errorf("unexpected size (%f, %f)", boxes[0].W, boxes[0].H)
	}
}

func TestDecodeCenterFaceBelowThreshold(t *testing.T) {

	p := CenterFaceParams()
	p.Keypoints = 0
	grid := 32

	heatmap := make([]float32, grid*grid)
	scales := make([]float32, grid*grid*2)
	offsets := make([]float32, grid*grid*2)

	heatmap[0] = p.ConfThreshold - 0.01

	boxes := DecodeCenterFace(heatmap, scales, offsets, nil, grid, p)

	if len(boxes) != 0 {
		t.Fatalf("expected no boxes, got %d", len(boxes))
	}
}

func TestDecodeCenterFaceLandmarks(t *testing.T) {

	p := CenterFaceParams()
	grid := 32

	heatmap := make([]float32, grid*grid)
	scales := make([]float32, grid*grid*2)
	offsets := make([]float32, grid*grid*2)
	lms := make([]float32, grid*grid*p.Keypoints*2)

	idx := 8*grid + 10
	heatmap[idx] = 0.9

	// first landmark at the box center, which sits half a box extent in
	// from the top left corner
	lms[idx*p.Keypoints*2+0] = 0.5
	lms[idx*p.Keypoints*2+1] = 0.5

	boxes := DecodeCenterFace(heatmap, scales, offsets, lms, grid, p)

	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	if len(boxes[0].Landmarks) != p.Keypoints {
		t.Fatalf("expected %d landmarks, got %d", p.Keypoints,
			len(boxes[0].Landmarks))
	}

	lm := boxes[0].Landmarks[0]

	if !feq(lm.X, boxes[0].X) || !feq(lm.Y, boxes[0].Y) {
		t.Errorf("expected landmark at box center (%f, %f), got (%f, %f)",
			boxes[0].X, boxes[0].Y, lm.X, lm.Y)
	}
}

func TestNMSSuppressesOverlap(t *testing.T) {

	boxes := []tracker.Box{
		{X: 0.5, Y: 0.5, W: 0.2, H: 0.2, Prob: 0.7},
		{X: 0.5, Y: 0.5, W: 0.2, H: 0.2, Prob: 0.9},
		{X: 0.1, Y: 0.1, W: 0.1, H: 0.1, Prob: 0.6},
	}

	keep := NMS(boxes, 0.3)

	if len(keep) != 2 {
		t.Fatalf("expected 2 boxes after NMS, got %d", len(keep))
	}

	if !feq(keep[0].Prob, 0.9) {
		t.Errorf("expected highest confidence box kept first, got %f",
			keep[0].Prob)
	}
	if !feq(keep[1].Prob, 0.6) {
		t.Errorf("expected disjoint box kept, got %f", keep[1].Prob)
	}
}

func TestNMSMaxBoxes(t *testing.T) {

	boxes := make([]tracker.Box, 0, 20)

	for i := 0; i < 20; i++ {
		boxes = append(boxes, tracker.Box{
			X: float32(i) * 0.05, Y: 0.1, W: 0.02, H: 0.02,
			Prob: 0.5 + float32(i)*0.01,
		})
	}

	keep := capBoxes(NMS(boxes, 0.3), 10)

	if len(keep) != 10 {
		t.Fatalf("expected 10 boxes, got %d", len(keep))
	}

	// ordered by descending confidence
	for i := 1; i < len(keep); i++ {
		if keep[i].Prob > keep[i-1].Prob {
			t.Errorf("boxes not ordered by confidence at %d", i)
		}
	}
}

func TestGenerateAnchorsCount(t *testing.T) {

	anchors := GenerateAnchors(128)

	// 16x16x2 on the stride 8 map plus 8x8x6 on the stride 16 map
	if len(anchors) != 896 {
		t.Fatalf("expected 896 anchors, got %d", len(anchors))
	}

	first := anchors[0]

	if !feq(first.X, 0.03125) || !feq(first.Y, 0.03125) {
		t.Errorf("unexpected first anchor center (%f, %f)", first.X, first.Y)
	}
	if !feq(first.W, 0.25) {
		t.Errorf("unexpected first anchor size %f", first.W)
	}
}

func TestDecodeBlazeFaceCenterAnchor(t *testing.T) {

	p := BlazeFaceParams()
	p.Keypoints = 0

	anchors := []Anchor{{X: 0.5, Y: 0.5, W: 1.0, H: 1.0}}

	// [dy, dx, h, w] in input pixel units, score as a logit
	raw := []float32{0, 0, 32, 32}
	scores := []float32{2.0}

	boxes := DecodeBlazeFace(raw, scores, anchors, p)

	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	b := boxes[0]

	if !feq(b.X, 0.5) || !feq(b.Y, 0.5) {
		t.Errorf("unexpected center (%f, %f)", b.X, b.Y)
	}
	if !feq(b.W, 0.25) || !feq(b.H, 0.25) {
		t.Errorf("unexpected size (%f, %f)", b.W, b.H)
	}
	if !feq(b.Prob, sigmoid(2.0)) {
		t.Errorf("unexpected score %f", b.Prob)
	}
}

func TestDecodeBlazeFaceBelowThreshold(t *testing.T) {

	p := BlazeFaceParams()
	p.Keypoints = 0

	anchors := []Anchor{{X: 0.5, Y: 0.5, W: 1.0, H: 1.0}}

	raw := []float32{0, 0, 32, 32}
	scores := []float32{-3.0}

	boxes := DecodeBlazeFace(raw, scores, anchors, p)

	if len(boxes) != 0 {
		t.Fatalf("expected no boxes, got %d", len(boxes))
	}
}
