package crowdlabel

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress receives a tick for every frame written to the output
type Progress interface {
	Add(n int) error
	Close() error
}

// ProgressFactory creates a Progress for a stream of total frames.  A total
// of -1 means the length is unknown.
type ProgressFactory func(total int) Progress

// NoProgress is a ProgressFactory that discards progress
func NoProgress(int) Progress {
	return nopProgress{}
}

type nopProgress struct{}

func (nopProgress) Add(int) error { return nil }
func (nopProgress) Close() error  { return nil }

// ProgressBar returns a ProgressFactory rendering a terminal progress bar to
// w.  With an unknown total a spinner with a running frame count is shown.
func ProgressBar(w io.Writer) ProgressFactory {
	return func(total int) Progress {

		max := int64(total)

		if total <= 0 {
			max = -1
		}

		return progressbar.NewOptions64(max,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("fr"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
		)
	}
}
