package render

import (
	"image/color"

	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

// DefaultAlpha is the default blending weight of the mask color layer
const DefaultAlpha = 0.45

// Mask alpha blends a solid color over the frame, restricted to the pixels
// where the mask is foreground.  The mask is resized to the frame dimensions
// with nearest neighbor interpolation first if needed.  Frames that are not
// 8 bit 3 channel are left untouched.
func Mask(img *gocv.Mat, mask *result.Mask, clr color.RGBA, alpha float32) {

	if mask == nil || img.Empty() || img.Type() != gocv.MatTypeCV8UC3 {
		return
	}

	width := img.Cols()
	height := img.Rows()

	mask = mask.Resize(width, height)

	// manipulating pixels one by one over CGO is too slow, so work on the
	// bytes directly.  A continuous Mat can be edited in place, otherwise
	// edit a copy and write it back.
	imgData, err := img.DataPtrUint8()
	inPlace := err == nil

	if !inPlace {
		imgData = img.ToBytes()
	}

	if !blend(imgData, mask.Pix(), clr, alpha) || inPlace {
		return
	}

	tmpImg, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)

	if err != nil {
		return
	}

	defer tmpImg.Close()
	tmpImg.CopyTo(img)
}

// blend mixes clr into the BGR pixel bytes wherever mask is set and reports
// whether any pixel changed
func blend(bgr []uint8, mask []uint8, clr color.RGBA, alpha float32) bool {

	if len(bgr) < len(mask)*3 {
		return false
	}

	inv := 1 - alpha
	cb := float32(clr.B) * alpha
	cg := float32(clr.G) * alpha
	cr := float32(clr.R) * alpha
	changed := false

	for i, m := range mask {

		if m == 0 {
			continue
		}

		pixelPos := i * 3

		bgr[pixelPos+0] = mix(bgr[pixelPos+0], cb, inv)
		bgr[pixelPos+1] = mix(bgr[pixelPos+1], cg, inv)
		bgr[pixelPos+2] = mix(bgr[pixelPos+2], cr, inv)
		changed = true
	}

	return changed
}

// mix returns px*inv + weighted rounded to the nearest uint8
func mix(px uint8, weighted, inv float32) uint8 {

	v := float32(px)*inv + weighted + 0.5

	if v >= 255 {
		return 255
	}

	return uint8(v)
}
