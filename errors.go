package crowdlabel

import (
	"errors"
	"fmt"
)

var (
	// ErrRefineCheckpoint is returned when mask refinement is requested
	// without a model checkpoint
	ErrRefineCheckpoint = errors.New("mask refinement requested but no refine checkpoint provided")
	// ErrNoRefiner is returned when mask refinement is requested but no
	// Refiner was supplied to the pipeline
	ErrNoRefiner = errors.New("mask refinement requested but no refiner configured")
	// ErrNoDetector is returned when a pipeline is created without a Detector
	ErrNoDetector = errors.New("no detector configured")
	// ErrAlreadyRun is returned when Run is called on a pipeline that has
	// already run
	ErrAlreadyRun = errors.New("pipeline has already run")
)

// ConfigError is returned for an invalid pipeline configuration.  It is
// always raised before any video resource is opened.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Stage is the step of frame processing an error occurred in
type Stage string

const (
	StageRead   Stage = "read"
	StageDetect Stage = "detect"
	StageRefine Stage = "refine"
	StageWrite  Stage = "write"
)

// FrameError is a terminal error raised while processing a single frame
type FrameError struct {
	// Index is the zero based position of the frame in the stream
	Index int
	Stage Stage
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %s failed: %v", e.Index, e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
