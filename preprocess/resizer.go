package preprocess

import (
	"image"
	"image/color"

	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

// PadColor is the gray letterbox border used by YOLO models
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Resizer letterboxes frames of a fixed size into a square model input and
// maps model space coordinates back to the frame
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	r.preCalc()

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// Matches reports whether the resizer was built for the given source and
// destination dimensions
func (r *Resizer) Matches(srcWidth, srcHeight, destWidth, destHeight int) bool {
	return r.srcWidth == srcWidth && r.srcHeight == srcHeight &&
		r.destWidth == destWidth && r.destHeight == destHeight
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2
	r.xPad = (r.destWidth - r.resizeW) / 2
}

// LetterBoxResize resizes src to the model input dimensions whilst
// maintaining image aspect, filling the border with clr
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, clr color.RGBA) {

	if r.resizeW == r.srcWidth && r.resizeH == r.srcHeight {
		src.CopyTo(&r.tempMat)
	} else {
		gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
			0, 0, gocv.InterpolationLinear)
	}

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, clr)
}

// Reverse maps a box in letterboxed model coordinates back to source frame
// coordinates, clamped to the frame
func (r *Resizer) Reverse(b result.Box) result.Box {

	xPad := float32(r.xPad)
	yPad := float32(r.yPad)

	return result.Box{
		X1: (b.X1 - xPad) / r.scale,
		Y1: (b.Y1 - yPad) / r.scale,
		X2: (b.X2 - xPad) / r.scale,
		Y2: (b.Y2 - yPad) / r.scale,
	}.Clamp(r.srcWidth, r.srcHeight)
}

// ContentRect returns the region of the model input that holds image content,
// scaled by fx and fy.  Factors of 0.25 give the region in the coordinates of
// a quarter resolution prototype mask.
func (r *Resizer) ContentRect(fx, fy float32) image.Rectangle {
	return image.Rect(
		int(float32(r.xPad)*fx),
		int(float32(r.yPad)*fy),
		int(float32(r.xPad+r.resizeW)*fx),
		int(float32(r.yPad+r.resizeH)*fy),
	)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// DestWidth returns the width of the model input
func (r *Resizer) DestWidth() int {
	return r.destWidth
}

// DestHeight returns the height of the model input
func (r *Resizer) DestHeight() int {
	return r.destHeight
}
