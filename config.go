package crowdlabel

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/swdee/go-crowdlabel/render"
)

// DeviceType is the kind of compute device inference runs on
type DeviceType string

const (
	DeviceCPU  DeviceType = "cpu"
	DeviceCUDA DeviceType = "cuda"
)

// Device is a parsed inference device such as "cpu", "cuda" or "cuda:1"
type Device struct {
	Type DeviceType
	// Index is the GPU ordinal for CUDA devices
	Index int
}

// String implements fmt.Stringer returning the canonical device name
func (d Device) String() string {

	if d.Type == DeviceCUDA && d.Index > 0 {
		return fmt.Sprintf("%s:%d", d.Type, d.Index)
	}

	return string(d.Type)
}

// ParseDevice parses a device name of the form cpu, cuda or cuda:N
func ParseDevice(s string) (Device, error) {

	name, idx, hasIdx := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")

	switch DeviceType(name) {
	case DeviceCPU:
		if hasIdx {
			return Device{}, fmt.Errorf("cpu device does not take an index: %q", s)
		}

		return Device{Type: DeviceCPU}, nil

	case DeviceCUDA:
		if !hasIdx {
			return Device{Type: DeviceCUDA}, nil
		}

		n, err := strconv.Atoi(idx)

		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid cuda device index: %q", s)
		}

		return Device{Type: DeviceCUDA, Index: n}, nil
	}

	return Device{}, fmt.Errorf("unknown device: %q", s)
}

// DetectParams are the inference parameters passed to a Detector on every
// call
type DetectParams struct {
	// Confidence is the minimum score a detection must exceed to be kept
	Confidence float32 `validate:"gte=0,lte=1"`
	// IoU is the Non-Maximum Suppression overlap threshold
	IoU float32 `validate:"gte=0,lte=1"`
	// ImgSize is the model input size in pixels of the longer side
	ImgSize int `validate:"gte=32,lte=4096"`
	// Device is the compute device, cpu, cuda or cuda:N
	Device string `validate:"required,device"`
}

// Config is the immutable configuration of a Pipeline
type Config struct {
	Detect DetectParams
	// UseMasks draws instance masks produced by a segmentation model
	UseMasks bool
	// Stride runs detection on every Nth frame only, other frames are
	// written through unmodified
	Stride int `validate:"gte=1"`
	// Refine enables per box mask refinement which takes precedence over
	// detector masks
	Refine bool
	// RefineCheckpoint is the refinement model checkpoint, required when
	// Refine is set
	RefineCheckpoint string `validate:"required_if=Refine true"`
	// RefineModel is the refinement model variant
	RefineModel string `validate:"oneof=vit_b vit_l vit_h"`
	// Color is used for boxes, tags and masks
	Color color.RGBA
	// Alpha is the opacity of mask overlays
	Alpha float32 `validate:"gte=0,lte=1"`
	// Thickness is the bounding box border width in pixels
	Thickness int `validate:"gte=1,lte=32"`
}

// DefaultConfig returns a Config with the default settings
func DefaultConfig() Config {
	return Config{
		Detect: DetectParams{
			Confidence: 0.35,
			IoU:        0.5,
			ImgSize:    640,
			Device:     "cuda",
		},
		Stride:      1,
		RefineModel: "vit_b",
		Color:       render.Person,
		Alpha:       render.DefaultAlpha,
		Thickness:   2,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {

	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("device", func(fl validator.FieldLevel) bool {
		_, err := ParseDevice(fl.Field().String())
		return err == nil
	})

	return v
}

// Validate checks the configuration and returns a *ConfigError describing the
// first invalid field
func (c Config) Validate() error {

	err := validate.Struct(c)

	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors

	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Field: "Config", Err: err}
	}

	fe := verrs[0]

	if fe.StructField() == "RefineCheckpoint" {
		return &ConfigError{Field: fe.StructNamespace(), Err: ErrRefineCheckpoint}
	}

	return &ConfigError{
		Field: fe.StructNamespace(),
		Err:   fmt.Errorf("failed %q validation with value %v", fe.Tag(), fe.Value()),
	}
}

// Device returns the parsed inference device
func (c Config) Device() (Device, error) {
	return ParseDevice(c.Detect.Device)
}
