package crowdlabel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDevice(t *testing.T) {

	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"cpu", Device{Type: DeviceCPU}, false},
		{"CUDA", Device{Type: DeviceCUDA}, false},
		{"cuda:0", Device{Type: DeviceCUDA, Index: 0}, false},
		{" cuda:2 ", Device{Type: DeviceCUDA, Index: 2}, false},
		{"cuda:-1", Device{}, true},
		{"cuda:x", Device{}, true},
		{"cpu:0", Device{}, true},
		{"gpu", Device{}, true},
		{"", Device{}, true},
	}

	for _, tc := range tests {
		got, err := ParseDevice(tc.in)

		if tc.wantErr {
			require.Error(t, err, "device %q", tc.in)
			continue
		}

		require.NoError(t, err, "device %q", tc.in)
		require.Equal(t, tc.want, got)
	}

	require.Equal(t, "cuda:2", Device{Type: DeviceCUDA, Index: 2}.String())
	require.Equal(t, "cuda", Device{Type: DeviceCUDA}.String())
}

func TestDefaultConfigValid(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	dev, err := cfg.Device()
	require.NoError(t, err)
	require.Equal(t, DeviceCUDA, dev.Type)
}

func TestConfigValidate(t *testing.T) {

	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"stride", func(c *Config) { c.Stride = 0 }, "Config.Stride"},
		{"confidence", func(c *Config) { c.Detect.Confidence = 1.5 }, "Config.Detect.Confidence"},
		{"iou", func(c *Config) { c.Detect.IoU = -0.1 }, "Config.Detect.IoU"},
		{"imgsz", func(c *Config) { c.Detect.ImgSize = 0 }, "Config.Detect.ImgSize"},
		{"device", func(c *Config) { c.Detect.Device = "tpu" }, "Config.Detect.Device"},
		{"sam model", func(c *Config) { c.RefineModel = "vit_x" }, "Config.RefineModel"},
		{"alpha", func(c *Config) { c.Alpha = 2 }, "Config.Alpha"},
		{"thickness", func(c *Config) { c.Thickness = 0 }, "Config.Thickness"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)

			err := cfg.Validate()

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestConfigRefineCheckpoint(t *testing.T) {

	cfg := DefaultConfig()
	cfg.Refine = true

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrRefineCheckpoint)

	cfg.RefineCheckpoint = "weights/sam_vit_b_01ec64.pth"
	require.NoError(t, cfg.Validate())

	// a checkpoint without refinement is allowed
	cfg.Refine = false
	require.NoError(t, cfg.Validate())
}
