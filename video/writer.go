package video

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// ErrClosed is returned when writing to a closed Writer
var ErrClosed = errors.New("video writer closed")

// Writer appends frames to an MP4 container
type Writer struct {
	vw     *gocv.VideoWriter
	props  Props
	frames int
	closed bool
	once   sync.Once
	err    error
}

// Create opens path for writing with the mp4v codec.  The parent directory is
// created if it does not exist.
func Create(path string, props Props) (*Writer, error) {

	if props.Width <= 0 || props.Height <= 0 {
		return nil, &OpenError{Op: OpWrite, Path: path,
			Err: fmt.Errorf("invalid frame size %dx%d", props.Width, props.Height)}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &OpenError{Op: OpWrite, Path: path, Err: err}
		}
	}

	vw, err := gocv.VideoWriterFile(path, Codec, props.FPS, props.Width,
		props.Height, true)

	if err != nil {
		return nil, &OpenError{Op: OpWrite, Path: path, Err: err}
	}

	if !vw.IsOpened() {
		vw.Close()
		return nil, &OpenError{Op: OpWrite, Path: path, Err: errNotOpened}
	}

	return &Writer{
		vw:    vw,
		props: props,
	}, nil
}

// Frames returns the number of frames written
func (w *Writer) Frames() int {
	return w.frames
}

// Write appends frame to the container.  The frame must match the writer's
// dimensions.
func (w *Writer) Write(frame gocv.Mat) error {

	if w.closed {
		return ErrClosed
	}

	if frame.Cols() != w.props.Width || frame.Rows() != w.props.Height {
		return fmt.Errorf("frame size %dx%d does not match output %dx%d",
			frame.Cols(), frame.Rows(), w.props.Width, w.props.Height)
	}

	if err := w.vw.Write(frame); err != nil {
		return fmt.Errorf("error writing frame %d: %w", w.frames, err)
	}

	w.frames++

	return nil
}

// Close flushes and releases the container.  It is safe to call more than
// once.
func (w *Writer) Close() error {

	w.once.Do(func() {
		w.closed = true
		w.err = w.vw.Close()
	})

	return w.err
}
