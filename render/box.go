package render

import (
	"image"
	"image/color"

	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

// boxLabel defines where the detection label tag should be rendered on the
// frame
type boxLabel struct {
	rect    image.Rectangle
	text    string
	textPos image.Point
}

// placeLabel works out the tag rectangle and text origin for a label attached
// to the top left corner of rect.  The tag sits above the box with its top
// clamped to the frame, unless there is no room above the box at all in
// which case it is placed just below the top edge.
func placeLabel(rect image.Rectangle, text string, font Font) boxLabel {

	size := font.tagSize(text)
	x1, y1 := rect.Min.X, rect.Min.Y

	if y1 <= 0 {
		y1 = max(y1, 0)

		return boxLabel{
			rect:    image.Rect(x1, y1, x1+size.X, y1+size.Y),
			text:    text,
			textPos: image.Pt(x1+font.LeftPad, y1+size.Y-font.BottomPad),
		}
	}

	return boxLabel{
		rect:    image.Rect(x1, max(0, y1-size.Y), x1+size.X, y1),
		text:    text,
		textPos: image.Pt(x1+font.LeftPad, y1-font.BottomPad),
	}
}

// Box draws the bounding box border of a detection with a filled label tag
// holding the given text.  The frame is modified in place.
func Box(img *gocv.Mat, box result.Box, label string, clr color.RGBA,
	thickness int, font Font) {

	// rectangles are drawn corner to corner inclusive with hard edges
	rect := box.Rect()
	gocv.RectangleWithParams(img, rect, clr, thickness, gocv.Line8, 0)

	tag := placeLabel(rect, label, font)

	// draw box text gets written on
	gocv.RectangleWithParams(img, tag.rect, clr, -1, gocv.Line8, 0)

	gocv.PutTextWithParams(img, tag.text, tag.textPos,
		font.Face, font.Scale, font.Color, font.Thickness,
		font.LineType, false)
}
