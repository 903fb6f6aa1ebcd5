package video

import (
	"errors"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

var errNotOpened = errors.New("container could not be opened")

// Capture reads frames from a video container in order.  It is forward only
// and can not be restarted.
type Capture struct {
	cap   *gocv.VideoCapture
	props Props
	count int
	once  sync.Once
	err   error
}

// Open opens the video file at path for sequential reading
func Open(path string) (*Capture, error) {

	vc, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, &OpenError{Op: OpRead, Path: path, Err: err}
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, &OpenError{Op: OpRead, Path: path, Err: errNotOpened}
	}

	c := &Capture{
		cap: vc,
		props: Props{
			Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    vc.Get(gocv.VideoCaptureFPS),
		},
		count: -1,
	}

	if n := int(vc.Get(gocv.VideoCaptureFrameCount)); n > 0 {
		c.count = n
	}

	return c, nil
}

// Props returns the stream properties as reported by the container.  The
// frame rate is not normalized.
func (c *Capture) Props() Props {
	return c.props
}

// FrameCount returns the number of frames the container reports, or -1 if
// unknown
func (c *Capture) FrameCount() int {
	return c.count
}

// Read decodes the next frame into dst.  It returns io.EOF once the stream is
// exhausted.
func (c *Capture) Read(dst *gocv.Mat) error {

	if ok := c.cap.Read(dst); !ok || dst.Empty() {
		return io.EOF
	}

	return nil
}

// Close releases the container handle.  It is safe to call more than once.
func (c *Capture) Close() error {

	c.once.Do(func() {
		c.err = c.cap.Close()
	})

	return c.err
}
