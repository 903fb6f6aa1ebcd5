// Package video provides sequential frame access to video containers and an
// MP4 writer for annotated output
package video

import (
	"fmt"
	"math"
)

const (
	// DefaultFPS is the frame rate used when a container does not report a
	// usable one
	DefaultFPS = 25.0
	// minFPS is the lowest frame rate reported by a container that is trusted
	minFPS = 1e-3
	// Codec is the FourCC the writer encodes with
	Codec = "mp4v"
)

// Props are the properties of a video stream that the output mirrors
type Props struct {
	Width  int
	Height int
	FPS    float64
}

// NormalizeFPS returns fps or DefaultFPS if fps is unavailable, non-positive
// or NaN
func NormalizeFPS(fps float64) float64 {

	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= minFPS {
		return DefaultFPS
	}

	return fps
}

// Normalized returns a copy of the props with the frame rate normalized
func (p Props) Normalized() Props {
	p.FPS = NormalizeFPS(p.FPS)
	return p
}

// String implements fmt.Stringer
func (p Props) String() string {
	return fmt.Sprintf("%dx%d@%.2ffps", p.Width, p.Height, p.FPS)
}

// Op is the direction a video handle was opened in
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// OpenError is returned when a video container can not be opened
type OpenError struct {
	Op   Op
	Path string
	Err  error
}

func (e *OpenError) Error() string {

	if e.Err == nil {
		return fmt.Sprintf("cannot open video for %s: %s", e.Op, e.Path)
	}

	return fmt.Sprintf("cannot open video for %s: %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
