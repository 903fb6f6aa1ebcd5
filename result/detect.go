package result

import (
	"fmt"
	"image"
)

const (
	// PersonClass is the COCO class index of "person", the only class the
	// pipeline annotates
	PersonClass = 0
	// PersonName is the class name rendered in detection labels
	PersonName = "person"
)

// Box is a bounding box in frame pixel coordinates with (X1,Y1) the top left
// and (X2,Y2) the bottom right corner
type Box struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// Width returns the width of the box
func (b Box) Width() float32 {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Valid reports whether the box has a positive area, x1 < x2 and y1 < y2
func (b Box) Valid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Clamp restricts the box to lie within a frame of the given dimensions
func (b Box) Clamp(width, height int) Box {
	return Box{
		X1: clampf(b.X1, 0, float32(width)),
		Y1: clampf(b.Y1, 0, float32(height)),
		X2: clampf(b.X2, 0, float32(width)),
		Y2: clampf(b.Y2, 0, float32(height)),
	}
}

// Rect returns the integer pixel rectangle of the box.  Coordinates are
// truncated towards zero.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Array returns the box as an [x1,y1,x2,y2] array
func (b Box) Array() [4]float32 {
	return [4]float32{b.X1, b.Y1, b.X2, b.Y2}
}

// BoxFromArray creates a Box from an [x1,y1,x2,y2] array
func BoxFromArray(a [4]float32) Box {
	return Box{X1: a[0], Y1: a[1], X2: a[2], Y2: a[3]}
}

// Detection is a single person located in a frame
type Detection struct {
	// Box is the bounding box of the person
	Box Box
	// Score is the confidence score of the detection in the range [0,1]
	Score float32
	// Class is the model class index, always PersonClass once it reaches the
	// pipeline
	Class int
	// Mask is the raw instance mask produced by a segmentation model at the
	// model's resolution.  It is nil for detection only models.
	Mask *RawMask
}

// Label returns the text rendered on the detection tag
func (d Detection) Label() string {
	return Label(d.Score)
}

// Label formats the tag text for a person with the given confidence score,
// always with two decimal places
func Label(score float32) string {
	return fmt.Sprintf("%s %.2f", PersonName, score)
}

func clampf(val, min, max float32) float32 {
	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
