package dnn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	crowdlabel "github.com/swdee/go-crowdlabel"
	"github.com/swdee/go-crowdlabel/postprocess"
	"gocv.io/x/gocv"
)

func TestBackendFor(t *testing.T) {

	require.Equal(t, Backend{Backend: gocv.NetBackendDefault, Target: gocv.NetTargetCPU},
		BackendFor(crowdlabel.Device{Type: crowdlabel.DeviceCPU}))

	require.Equal(t, Backend{Backend: gocv.NetBackendCUDA, Target: gocv.NetTargetCUDA},
		BackendFor(crowdlabel.Device{Type: crowdlabel.DeviceCUDA, Index: 1}))
}

func TestAlignSize(t *testing.T) {

	tests := map[int]int{
		640: 640,
		641: 672,
		320: 320,
		100: 128,
		0:   32,
	}

	for in, want := range tests {
		require.Equal(t, want, AlignSize(in), "size %d", in)
	}
}

func TestSplitOutputs(t *testing.T) {

	pred := postprocess.Tensor{Shape: []int{1, 116, 8400}}
	proto := postprocess.Tensor{Shape: []int{1, 32, 160, 160}}

	p, pr, err := splitOutputs([]postprocess.Tensor{proto, pred})
	require.NoError(t, err)
	require.Equal(t, pred.Shape, p.Shape)
	require.NotNil(t, pr)
	require.Equal(t, proto.Shape, pr.Shape)

	p, pr, err = splitOutputs([]postprocess.Tensor{pred})
	require.NoError(t, err)
	require.Equal(t, pred.Shape, p.Shape)
	require.Nil(t, pr)

	_, _, err = splitOutputs([]postprocess.Tensor{proto})
	require.ErrorIs(t, err, postprocess.ErrTensorShape)
}

func TestNewDetectorErrors(t *testing.T) {

	_, err := NewDetector("model.onnx", "tpu", nil)
	require.Error(t, err)

	_, err = NewDetector(filepath.Join(t.TempDir(), "missing.onnx"), "cpu", nil)
	require.ErrorIs(t, err, ErrModelLoad)
}
