package result

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	// SegmentThreshold is the score a segmentation model's raw mask value must
	// exceed for the pixel to be part of the silhouette
	SegmentThreshold = 0.65
	// BinaryThreshold is used to binarize masks that are not already binary
	BinaryThreshold = 0.5

	// foreground is the gray level used for silhouette pixels
	foreground = 0xff
)

// RawMask is a per pixel score grid as output by a segmentation model, stored
// row-major.  Values are normally in the range [0,1].
type RawMask struct {
	Width  int
	Height int
	Data   []float32
}

// NewRawMask returns a zeroed RawMask of the given dimensions
func NewRawMask(width, height int) *RawMask {
	return &RawMask{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

// At returns the score at the given pixel
func (r *RawMask) At(x, y int) float32 {
	return r.Data[y*r.Width+x]
}

// Threshold converts the raw scores into a binary Mask where only values
// strictly greater than t are foreground
func (r *RawMask) Threshold(t float32) *Mask {

	m := NewMask(r.Width, r.Height)

	for i, v := range r.Data {
		if v > t {
			m.img.Pix[i] = foreground
		}
	}

	return m
}

// Binarize thresholds the raw mask at BinaryThreshold
func (r *RawMask) Binarize() *Mask {
	return r.Threshold(BinaryThreshold)
}

// Mask is a binary silhouette.  Each pixel is either foreground or
// background.
type Mask struct {
	img *image.Gray
}

// NewMask returns an empty Mask of the given dimensions
func NewMask(width, height int) *Mask {
	return &Mask{
		img: image.NewGray(image.Rect(0, 0, width, height)),
	}
}

// Width of the mask
func (m *Mask) Width() int {
	return m.img.Rect.Dx()
}

// Height of the mask
func (m *Mask) Height() int {
	return m.img.Rect.Dy()
}

// Set marks the pixel as foreground or background
func (m *Mask) Set(x, y int, fg bool) {

	if !(image.Point{X: x, Y: y}.In(m.img.Rect)) {
		return
	}

	v := uint8(0)

	if fg {
		v = foreground
	}

	m.img.Pix[m.img.PixOffset(x, y)] = v
}

// FillRect marks every pixel within r as foreground, clipped to the mask
func (m *Mask) FillRect(r image.Rectangle) {

	r = r.Intersect(m.img.Rect)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.img.Pix[m.img.PixOffset(x, y)] = foreground
		}
	}
}

// At reports whether the pixel is foreground
func (m *Mask) At(x, y int) bool {

	if !(image.Point{X: x, Y: y}.In(m.img.Rect)) {
		return false
	}

	return m.img.Pix[m.img.PixOffset(x, y)] != 0
}

// Pix returns the row-major mask bytes, non-zero for foreground
func (m *Mask) Pix() []uint8 {
	return m.img.Pix
}

// Area returns the number of foreground pixels
func (m *Mask) Area() int {

	n := 0

	for _, v := range m.img.Pix {
		if v != 0 {
			n++
		}
	}

	return n
}

// Resize returns the mask scaled to the given dimensions using nearest
// neighbor interpolation so silhouette edges stay hard.  The mask itself is
// returned when it already has the requested size.
func (m *Mask) Resize(width, height int) *Mask {

	if m.Width() == width && m.Height() == height {
		return m
	}

	dst := NewMask(width, height)
	draw.NearestNeighbor.Scale(dst.img, dst.img.Rect, m.img, m.img.Rect,
		draw.Src, nil)

	return dst
}
