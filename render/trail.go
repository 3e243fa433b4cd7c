package render

import (
	"image"
	"image/color"

	"github.com/edgelock/go-facelock/tracker"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	LineColor     color.RGBA
	LineThickness int
	CircleColor   color.RGBA
	CircleRadius  int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineColor:     Yellow,
		LineThickness: 1,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// Trail keeps the recent center positions of the locked target and draws
// its motion history on video frames
type Trail struct {
	points []image.Point
	limit  int
	style  TrailStyle
}

// NewTrail creates a trail holding at most limit history points
func NewTrail(limit int, style TrailStyle) *Trail {

	if limit <= 0 {
		limit = 60
	}

	return &Trail{
		points: make([]image.Point, 0, limit),
		limit:  limit,
		style:  style,
	}
}

// Push records the center of the target box on the pixel plane of an
// image with the given dimensions
func (t *Trail) Push(box tracker.Box, cols, rows int) {

	pt := image.Pt(int(box.X*float32(cols)), int(box.Y*float32(rows)))

	if len(t.points) == t.limit {
		copy(t.points, t.points[1:])
		t.points = t.points[:t.limit-1]
	}

	t.points = append(t.points, pt)
}

// Clear discards the recorded history, used when the lock is lost
func (t *Trail) Clear() {
	t.points = t.points[:0]
}

// Draw renders the trail line showing the target's tracking history with
// a center point circle on the current position
func (t *Trail) Draw(img *gocv.Mat) {

	if len(t.points) < 2 {
		return
	}

	for i := 1; i < len(t.points); i++ {
		gocv.Line(img, t.points[i-1], t.points[i],
			t.style.LineColor, t.style.LineThickness)
	}

	last := t.points[len(t.points)-1]
	gocv.Circle(img, last, t.style.CircleRadius, t.style.CircleColor, -1)
}
