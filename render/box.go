package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/edgelock/go-facelock/tracker"
	"gocv.io/x/gocv"
)

// boxLabel records the label rendering details of a bounding box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// FaceBoxes renders the bounding boxes around the detected faces.  Boxes
// are given in normalized coordinates and mapped onto the image plane
func FaceBoxes(img *gocv.Mat, boxes []tracker.Box, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	for _, box := range boxes {

		rect := pixelRect(box, img.Cols(), img.Rows())
		gocv.Rectangle(img, rect, detectColor, lineThickness)

		// create text for label
		text := fmt.Sprintf("face %.2f", box.Prob)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// Calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (rect.Min.X + rect.Max.X) / 2

		case Right:
			centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		// Adjust the label position so the text is centered horizontally
		labelPosition := image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad)

		// create box for placing text on
		bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
			rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, rect.Min.Y)

		boxLabels = append(boxLabels, boxLabel{
			rect:    bRect,
			clr:     detectColor,
			text:    text,
			textPos: labelPosition,
		})
	}

	// draw all precalculated box labels so they are the top most layer on
	// the image
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// TargetBox renders the locked target face box with its identity
// similarity as the label
func TargetBox(img *gocv.Mat, box tracker.Box, similarity float32,
	font Font, lineThickness int) {

	rect := pixelRect(box, img.Cols(), img.Rows())
	gocv.Rectangle(img, rect, targetColor, lineThickness)

	text := fmt.Sprintf("target %.2f", similarity)
	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	centerX := rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	labelPosition := image.Pt(centerX-textSize.X/2, rect.Min.Y-font.BottomPad)

	bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
		rect.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
		centerX+textSize.X/2+font.RightPad, rect.Min.Y)

	gocv.Rectangle(img, bRect, targetColor, -1)
	gocv.PutTextWithParams(img, text, labelPosition,
		font.Face, font.Scale, font.Color, font.Thickness,
		font.LineType, false)
}

// FaceLandmarks renders the landmark keypoints of the detected faces
func FaceLandmarks(img *gocv.Mat, boxes []tracker.Box, radius int) {

	w := float32(img.Cols())
	h := float32(img.Rows())

	for _, box := range boxes {
		for j, lm := range box.Landmarks {
			clr := faceLandmarkColors[j%len(faceLandmarkColors)]
			gocv.Circle(img, image.Pt(int(lm.X*w), int(lm.Y*h)),
				radius, clr, -1)
		}
	}
}

// HUD renders the pipeline status line in the top left corner of the
// image showing the lock phase, identity similarity and frame processing
// time.  phaseIdx selects the status color, search, verify then track
func HUD(img *gocv.Mat, status string, phaseIdx int, similarity float32,
	processMS float32, font Font) {

	text := fmt.Sprintf("%s  sim %.2f  %.1fms", status, similarity, processMS)

	clr := White

	if phaseIdx >= 0 && phaseIdx < len(phaseColors) {
		clr = phaseColors[phaseIdx]
	}

	gocv.PutTextWithParams(img, text, image.Pt(8, 24),
		font.Face, font.Scale, clr, font.Thickness,
		font.LineType, false)
}

// pixelRect maps a normalized box onto the image pixel plane
func pixelRect(box tracker.Box, cols, rows int) image.Rectangle {

	w := float32(cols)
	h := float32(rows)

	return image.Rect(
		int(box.TLX()*w), int(box.TLY()*h),
		int(box.BRX()*w), int(box.BRY()*h),
	)
}
