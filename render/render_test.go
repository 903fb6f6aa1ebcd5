package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

// newFrame returns a BGR frame filled with a single color
func newFrame(t *testing.T, width, height int, b, g, r float64) gocv.Mat {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), height,
		width, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })

	return img
}

func requirePixel(t *testing.T, img gocv.Mat, x, y int, b, g, r uint8) {
	t.Helper()

	px := img.GetVecbAt(y, x)
	require.Equal(t, []uint8{b, g, r}, []uint8{px[0], px[1], px[2]},
		"pixel at x=%d y=%d", x, y)
}

func TestBoxDrawsBorderAndTagAbove(t *testing.T) {

	img := newFrame(t, 100, 100, 0, 0, 0)

	box := result.Box{X1: 10, Y1: 20, X2: 50, Y2: 60}
	Box(&img, box, "person 0.90", Person, 2, DefaultFont())

	// border
	requirePixel(t, img, 10, 40, Person.B, Person.G, Person.R)
	requirePixel(t, img, 50, 40, Person.B, Person.G, Person.R)
	requirePixel(t, img, 30, 60, Person.B, Person.G, Person.R)

	// interior untouched
	requirePixel(t, img, 30, 40, 0, 0, 0)

	// tag is filled above the box left corner, before the text starts
	requirePixel(t, img, 10, 17, Person.B, Person.G, Person.R)

	// nothing is drawn left of the box
	requirePixel(t, img, 5, 15, 0, 0, 0)
}

func TestPlaceLabel(t *testing.T) {

	font := DefaultFont()
	size := font.tagSize("person 0.90")

	require.Greater(t, size.X, 0)
	require.Greater(t, size.Y, font.TopPad)

	// room above the box
	tag := placeLabel(image.Rect(10, 40, 50, 90), "person 0.90", font)
	require.Equal(t, image.Rect(10, 40-size.Y, 10+size.X, 40), tag.rect)
	require.Equal(t, image.Pt(12, 34), tag.textPos)

	// partial room above, the top is clamped to the frame
	tag = placeLabel(image.Rect(10, 5, 50, 90), "person 0.90", font)
	require.Equal(t, image.Rect(10, 0, 10+size.X, 5), tag.rect)

	// no room above, the tag falls below the top edge
	tag = placeLabel(image.Rect(10, 0, 50, 90), "person 0.90", font)
	require.Equal(t, image.Rect(10, 0, 10+size.X, size.Y), tag.rect)
	require.Equal(t, image.Pt(12, size.Y-font.BottomPad), tag.textPos)
}

func TestBoxOutOfFrameDoesNotPanic(t *testing.T) {

	img := newFrame(t, 64, 48, 0, 0, 0)

	require.NotPanics(t, func() {
		Box(&img, result.Box{X1: -30, Y1: -30, X2: 500, Y2: 400}, "person 0.50",
			Person, 2, DefaultFont())
		Box(&img, result.Box{X1: 200, Y1: 200, X2: 300, Y2: 300}, "person 0.50",
			Person, 2, DefaultFont())
	})
}

func TestMaskZeroIsNoop(t *testing.T) {

	img := newFrame(t, 32, 24, 100, 40, 200)
	before := img.ToBytes()

	Mask(&img, result.NewMask(32, 24), Person, DefaultAlpha)

	require.Equal(t, before, img.ToBytes())
}

func TestMaskBlendsForeground(t *testing.T) {

	img := newFrame(t, 10, 10, 100, 40, 200)

	m := result.NewMask(10, 10)
	m.FillRect(image.Rect(2, 2, 4, 4))

	Mask(&img, m, Person, DefaultAlpha)

	// 100*0.55+60*0.45, 40*0.55+160*0.45, 200*0.55+255*0.45
	requirePixel(t, img, 2, 2, 82, 94, 225)
	requirePixel(t, img, 3, 3, 82, 94, 225)
	requirePixel(t, img, 4, 4, 100, 40, 200)
	requirePixel(t, img, 1, 2, 100, 40, 200)
}

func TestMaskIsResizedToFrame(t *testing.T) {

	img := newFrame(t, 10, 10, 0, 0, 0)

	// a 2x2 mask with only the top left quadrant set
	m := result.NewMask(2, 2)
	m.Set(0, 0, true)

	Mask(&img, m, White, 1)

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 5 && y < 5 {
				requirePixel(t, img, x, y, 255, 255, 255)
			} else {
				requirePixel(t, img, x, y, 0, 0, 0)
			}
		}
	}
}

func TestBlend(t *testing.T) {

	bgr := []uint8{10, 20, 30, 10, 20, 30}
	mask := []uint8{0, 1}

	require.True(t, blend(bgr, mask, White, 1))
	require.Equal(t, []uint8{10, 20, 30, 255, 255, 255}, bgr)

	require.False(t, blend(bgr, []uint8{0, 0}, White, 1))
	require.False(t, blend(bgr[:3], mask, White, 1), "short frame buffer")
}
