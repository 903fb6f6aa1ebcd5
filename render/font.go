package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Font defines the parameters for rendering label text on a frame using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// HeightFactor scales the measured text height to leave room for
	// descenders
	HeightFactor float64
	// Padding to place around text within the label tag
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:         gocv.FontHersheySimplex,
		Scale:        0.5,
		Color:        White,
		Thickness:    1,
		LineType:     gocv.LineAA,
		HeightFactor: 1.2,
		LeftPad:      2,
		RightPad:     2,
		TopPad:       4,
		BottomPad:    6,
	}
}

// tagSize returns the dimensions of the filled label tag needed to hold text
func (f Font) tagSize(text string) image.Point {

	textSize := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)
	th := int(float64(textSize.Y) * f.HeightFactor)

	return image.Pt(textSize.X+f.LeftPad+f.RightPad, th+f.TopPad)
}
