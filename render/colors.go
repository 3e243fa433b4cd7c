package render

import "image/color"

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Green  = color.RGBA{R: 72, G: 249, B: 10, A: 255}
	Red    = color.RGBA{R: 255, G: 56, B: 56, A: 255}
	Blue   = color.RGBA{R: 0, G: 194, B: 255, A: 255}
	Pink   = color.RGBA{R: 255, G: 0, B: 255, A: 255}

	// detectColor is used for raw face detection boxes
	detectColor = Blue
	// targetColor is used for the locked target box
	targetColor = Green

	// faceLandmarkColors correspond to the face landmark feature keypoints
	faceLandmarkColors = []color.RGBA{
		{R: 51, G: 153, B: 255, A: 255}, // left eye
		{R: 51, G: 153, B: 255, A: 255}, // right eye
		{R: 255, G: 0, B: 0, A: 255},    // nose
		{R: 0, G: 255, B: 0, A: 255},    // left mouth corner
		{R: 0, G: 255, B: 0, A: 255},    // right mouth corner
	}

	// phaseColors map the pipeline phase index to the HUD status color,
	// search, verify then track
	phaseColors = []color.RGBA{Yellow, Blue, Green}
)
