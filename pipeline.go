package crowdlabel

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swdee/go-crowdlabel/render"
	"github.com/swdee/go-crowdlabel/result"
	"github.com/swdee/go-crowdlabel/video"
	"gocv.io/x/gocv"
)

// Source is a forward only sequence of BGR frames
type Source interface {
	// Props returns the stream properties as reported by the container
	Props() video.Props
	// FrameCount returns the number of frames or -1 if unknown
	FrameCount() int
	// Read decodes the next frame into dst, returning io.EOF at the end of
	// the stream
	Read(dst *gocv.Mat) error
	Close() error
}

// Sink consumes frames in order
type Sink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// Detector locates people in a frame.  Returned detections are person only,
// already confidence filtered and suppressed.
type Detector interface {
	Detect(frame gocv.Mat, params DetectParams) ([]result.Detection, error)
}

// Refiner produces a silhouette mask for the person within box
type Refiner interface {
	Refine(frame gocv.Mat, box result.Box) (*result.Mask, error)
}

// SourceOpener opens the input at path
type SourceOpener func(path string) (Source, error)

// SinkOpener opens the output at path with the given properties
type SinkOpener func(path string, props video.Props) (Sink, error)

// MaskStrategy is how silhouettes are obtained for each detection
type MaskStrategy int

const (
	// MaskNone draws boxes only
	MaskNone MaskStrategy = iota
	// MaskDetector draws the thresholded masks of a segmentation model
	MaskDetector
	// MaskRefiner draws masks produced by the Refiner for each box
	MaskRefiner
)

func (m MaskStrategy) String() string {
	switch m {
	case MaskDetector:
		return "detector"
	case MaskRefiner:
		return "refiner"
	default:
		return "none"
	}
}

// State is the lifecycle position of a Pipeline
type State int32

const (
	StateInit State = iota
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "init"
	}
}

// Stats summarise a run
type Stats struct {
	// Frames is the number of frames written to the output
	Frames int
	// Annotated is the number of frames detection ran on
	Annotated int
	// Passthrough is the number of frames skipped by the stride
	Passthrough int
	// Detections is the total number of people drawn
	Detections int
	// Elapsed is the duration of the run
	Elapsed time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRefiner sets the Refiner used when Config.Refine is set
func WithRefiner(r Refiner) Option {
	return func(p *Pipeline) {
		p.refiner = r
	}
}

// WithLogger sets the logger, logrus.StandardLogger() is used by default
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithProgress sets the progress reporter, by default progress is discarded
func WithProgress(f ProgressFactory) Option {
	return func(p *Pipeline) {
		p.progress = f
	}
}

// WithFont sets the font used for detection tags
func WithFont(f render.Font) Option {
	return func(p *Pipeline) {
		p.font = f
	}
}

// WithSourceOpener replaces how the input is opened
func WithSourceOpener(o SourceOpener) Option {
	return func(p *Pipeline) {
		p.openSource = o
	}
}

// WithSinkOpener replaces how the output is opened
func WithSinkOpener(o SinkOpener) Option {
	return func(p *Pipeline) {
		p.openSink = o
	}
}

// Pipeline reads a video, annotates the people in it and writes the result
type Pipeline struct {
	cfg        Config
	detector   Detector
	refiner    Refiner
	masks      MaskStrategy
	font       render.Font
	log        logrus.FieldLogger
	progress   ProgressFactory
	openSource SourceOpener
	openSink   SinkOpener
	state      atomic.Int32
}

// New validates cfg and returns a Pipeline ready to Run.  Configuration errors
// are returned as a *ConfigError.
func New(cfg Config, detector Detector, opts ...Option) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if detector == nil {
		return nil, &ConfigError{Field: "Detector", Err: ErrNoDetector}
	}

	p := &Pipeline{
		cfg:      cfg,
		detector: detector,
		font:     render.DefaultFont(),
		log:      logrus.StandardLogger(),
		progress: NoProgress,
		openSource: func(path string) (Source, error) {
			return video.Open(path)
		},
		openSink: func(path string, props video.Props) (Sink, error) {
			return video.Create(path, props)
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	switch {
	case cfg.Refine:
		if p.refiner == nil {
			return nil, &ConfigError{Field: "Refiner", Err: ErrNoRefiner}
		}

		p.masks = MaskRefiner

	case cfg.UseMasks:
		p.masks = MaskDetector

	default:
		p.masks = MaskNone
	}

	return p, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}

// MaskStrategy returns how masks are obtained
func (p *Pipeline) MaskStrategy() MaskStrategy {
	return p.masks
}

// State returns the current lifecycle state
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// Run processes input into output.  A Pipeline can only be run once.
//
// If input or output can not be opened a *video.OpenError is returned and no
// frames are processed, an output is never created when the input fails.  A
// failure on any frame ends the run with a *FrameError, the frames written so
// far are kept and the output is closed.  Cancelling ctx stops the run
// between frames with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, input, output string) (stats Stats, err error) {

	if !p.state.CompareAndSwap(int32(StateInit), int32(StateStreaming)) {
		return stats, ErrAlreadyRun
	}

	start := time.Now()
	log := p.log.WithFields(logrus.Fields{
		"input":  input,
		"output": output,
	})

	src, err := p.openSource(input)

	if err != nil {
		p.setState(StateClosed)
		return stats, err
	}

	reported := src.Props()
	props := reported.Normalized()

	if props.FPS != reported.FPS {
		log.Warnf("Source reports %v fps, writing at %v fps", reported.FPS, props.FPS)
	}

	sink, err := p.openSink(output, props)

	if err != nil {
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("Error closing source")
		}

		p.setState(StateClosed)
		return stats, err
	}

	total := src.FrameCount()
	bar := p.progress(total)
	finished := false

	// resources are released however the loop ends, including a panic in a
	// detector or refiner
	defer func() {
		p.setState(StateDraining)

		cerr := errors.Join(bar.Close(), src.Close(), sink.Close())

		p.setState(StateClosed)
		stats.Elapsed = time.Since(start)

		if err == nil {
			err = cerr
		} else if cerr != nil {
			log.WithError(cerr).Warn("Error releasing video resources")
		}

		fields := logrus.Fields{
			"frames":      stats.Frames,
			"annotated":   stats.Annotated,
			"passthrough": stats.Passthrough,
			"detections":  stats.Detections,
			"elapsed":     stats.Elapsed.Round(time.Millisecond),
		}

		switch {
		case !finished:
			log.WithFields(fields).Error("Processing interrupted by panic")
		case err != nil:
			log.WithFields(fields).WithError(err).Error("Processing aborted")
		default:
			log.WithFields(fields).Info("Processing complete")
		}
	}()

	log.WithFields(logrus.Fields{
		"props":  props.String(),
		"frames": total,
		"masks":  p.masks.String(),
		"stride": p.cfg.Stride,
		"device": p.cfg.Detect.Device,
	}).Info("Processing video")

	err = p.stream(ctx, src, sink, bar, &stats)
	finished = true

	return stats, err
}

// stream runs the frame loop until the source is exhausted or an error occurs
func (p *Pipeline) stream(ctx context.Context, src Source, sink Sink,
	bar Progress, stats *Stats) error {

	frame := gocv.NewMat()
	defer frame.Close()

	for idx := 0; ; idx++ {

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := src.Read(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return &FrameError{Index: idx, Stage: StageRead, Err: err}
		}

		if p.cfg.Stride > 1 && idx%p.cfg.Stride != 0 {
			stats.Passthrough++

		} else {
			n, err := p.annotate(&frame, idx)
			stats.Detections += n

			if err != nil {
				return err
			}

			stats.Annotated++
		}

		if err := sink.Write(frame); err != nil {
			return &FrameError{Index: idx, Stage: StageWrite, Err: err}
		}

		stats.Frames++

		if err := bar.Add(1); err != nil {
			p.log.WithError(err).Debug("Progress update failed")
		}
	}
}

// annotate runs detection on the frame and draws the results in place,
// returning the number of people drawn
func (p *Pipeline) annotate(frame *gocv.Mat, idx int) (int, error) {

	dets, err := p.detector.Detect(*frame, p.cfg.Detect)

	if err != nil {
		return 0, &FrameError{Index: idx, Stage: StageDetect, Err: err}
	}

	masks, err := p.masksFor(*frame, idx, dets)

	if err != nil {
		return 0, err
	}

	for i, det := range dets {
		if masks[i] != nil {
			render.Mask(frame, masks[i], p.cfg.Color, p.cfg.Alpha)
		}

		render.Box(frame, det.Box, det.Label(), p.cfg.Color, p.cfg.Thickness,
			p.font)
	}

	p.log.WithFields(logrus.Fields{
		"frame":      idx,
		"detections": len(dets),
	}).Debug("Frame annotated")

	return len(dets), nil
}

// masksFor returns the silhouette for each detection according to the mask
// strategy, nil entries are drawn without a mask.  Refinement sees the frame
// before any annotation is drawn on it.
func (p *Pipeline) masksFor(frame gocv.Mat, idx int,
	dets []result.Detection) ([]*result.Mask, error) {

	masks := make([]*result.Mask, len(dets))

	switch p.masks {
	case MaskRefiner:
		for i, det := range dets {
			m, err := p.refiner.Refine(frame, det.Box)

			if err != nil {
				return nil, &FrameError{Index: idx, Stage: StageRefine, Err: err}
			}

			masks[i] = m
		}

	case MaskDetector:
		for i, det := range dets {
			if det.Mask != nil {
				masks[i] = det.Mask.Threshold(result.SegmentThreshold)
			}
		}
	}

	return masks, nil
}
