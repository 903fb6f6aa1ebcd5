package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swdee/go-crowdlabel/preprocess"
	"github.com/swdee/go-crowdlabel/result"
)

// anchor is a test helper describing one column of a prediction tensor
type anchor struct {
	cx, cy, w, h float32
	scores       []float32
	coeffs       []float32
}

// buildPrediction lays anchors out as a [1, 4+classes+coeffs, N] tensor
func buildPrediction(anchors []anchor) Tensor {

	channels := 4 + len(anchors[0].scores) + len(anchors[0].coeffs)
	n := len(anchors)
	data := make([]float32, channels*n)

	for a, an := range anchors {
		col := append([]float32{an.cx, an.cy, an.w, an.h}, an.scores...)
		col = append(col, an.coeffs...)

		for c, v := range col {
			data[c*n+a] = v
		}
	}

	return Tensor{Shape: []int{1, channels, n}, Data: data}
}

func testAnchors() []anchor {
	return []anchor{
		{cx: 20, cy: 20, w: 10, h: 10, scores: []float32{0.9, 0.1}},
		// overlaps the first box with IoU 0.68
		{cx: 21, cy: 21, w: 10, h: 10, scores: []float32{0.8, 0}},
		// best class is not a person
		{cx: 40, cy: 40, w: 10, h: 10, scores: []float32{0.5, 0.95}},
		// below threshold
		{cx: 50, cy: 10, w: 4, h: 4, scores: []float32{0.2, 0}},
	}
}

func TestDetectObjectsPersonOnly(t *testing.T) {

	resizer := preprocess.NewResizer(64, 64, 64, 64)
	defer resizer.Close()

	y := NewYOLOv8(YOLOv8PersonParams())

	dets, err := y.DetectObjects(buildPrediction(testAnchors()), nil, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	require.Equal(t, result.Box{X1: 15, Y1: 15, X2: 25, Y2: 25}, dets[0].Box)
	require.InDelta(t, 0.9, dets[0].Score, 1e-6)
	require.Equal(t, result.PersonClass, dets[0].Class)
	require.Nil(t, dets[0].Mask)
}

func TestDetectObjectsAllClassesSorted(t *testing.T) {

	resizer := preprocess.NewResizer(64, 64, 64, 64)
	defer resizer.Close()

	p := YOLOv8PersonParams()
	p.FilterClass = -1

	dets, err := NewYOLOv8(p).DetectObjects(buildPrediction(testAnchors()), nil, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	require.Equal(t, 1, dets[0].Class)
	require.InDelta(t, 0.95, dets[0].Score, 1e-6)
	require.Equal(t, 0, dets[1].Class)
	require.InDelta(t, 0.9, dets[1].Score, 1e-6)
}

func TestDetectObjectsNMSThreshold(t *testing.T) {

	resizer := preprocess.NewResizer(64, 64, 64, 64)
	defer resizer.Close()

	p := YOLOv8PersonParams()
	p.NMSThreshold = 0.7

	dets, err := NewYOLOv8(p).DetectObjects(buildPrediction(testAnchors()), nil, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	p.MaxObjectNumber = 1

	dets, err = NewYOLOv8(p).DetectObjects(buildPrediction(testAnchors()), nil, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 1)
}

func TestDetectObjectsNoCandidates(t *testing.T) {

	resizer := preprocess.NewResizer(64, 64, 64, 64)
	defer resizer.Close()

	pred := buildPrediction([]anchor{
		{cx: 10, cy: 10, w: 5, h: 5, scores: []float32{0.1}},
	})

	dets, err := NewYOLOv8(YOLOv8PersonParams()).DetectObjects(pred, nil, resizer)
	require.NoError(t, err)
	require.Empty(t, dets)
}

func TestDetectObjectsDropsBorderBoxes(t *testing.T) {

	// 64x32 source letterboxed with 16 pixel bands above and below
	resizer := preprocess.NewResizer(64, 32, 64, 64)
	defer resizer.Close()

	pred := buildPrediction([]anchor{
		// wholly inside the top band
		{cx: 20, cy: 5, w: 10, h: 6, scores: []float32{0.9}},
		{cx: 40, cy: 30, w: 10, h: 10, scores: []float32{0.8}},
	})

	dets, err := NewYOLOv8(YOLOv8PersonParams()).DetectObjects(pred, nil, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	require.Equal(t, result.Box{X1: 35, Y1: 9, X2: 45, Y2: 19}, dets[0].Box)
	require.InDelta(t, 0.8, dets[0].Score, 1e-6)
}

func TestDetectObjectsBadShape(t *testing.T) {

	resizer := preprocess.NewResizer(64, 64, 64, 64)
	defer resizer.Close()

	y := NewYOLOv8(YOLOv8PersonParams())

	_, err := y.DetectObjects(Tensor{Shape: []int{1, 6}, Data: make([]float32, 6)}, nil, resizer)
	require.ErrorIs(t, err, ErrTensorShape)

	_, err = y.DetectObjects(Tensor{Shape: []int{1, 6, 2}, Data: make([]float32, 3)}, nil, resizer)
	require.ErrorIs(t, err, ErrTensorShape)

	// every channel consumed by mask coefficients leaves no classes
	proto := Tensor{Shape: []int{1, 2, 2, 2}, Data: make([]float32, 8)}
	_, err = y.DetectObjects(Tensor{Shape: []int{1, 6, 1}, Data: make([]float32, 6)}, &proto, resizer)
	require.ErrorIs(t, err, ErrTensorShape)
}

func TestDetectObjectsSegmentMask(t *testing.T) {

	// an 8x4 frame letterboxed into 16x16 has 4 rows of padding top and bottom
	resizer := preprocess.NewResizer(8, 4, 16, 16)
	defer resizer.Close()

	pred := buildPrediction([]anchor{
		{cx: 4, cy: 8, w: 8, h: 8, scores: []float32{0.9}, coeffs: []float32{1}},
	})

	proto := Tensor{Shape: []int{1, 1, 4, 4}, Data: make([]float32, 16)}

	for i := range proto.Data {
		proto.Data[i] = 10
	}

	dets, err := NewYOLOv8(YOLOv8PersonParams()).DetectObjects(pred, &proto, resizer)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	require.Equal(t, result.Box{X1: 0, Y1: 0, X2: 4, Y2: 4}, dets[0].Box)

	m := dets[0].Mask
	require.NotNil(t, m)
	require.Equal(t, 4, m.Width)
	require.Equal(t, 2, m.Height)

	for y := 0; y < m.Height; y++ {
		require.Greater(t, m.At(0, y), float32(0.99))
		require.Greater(t, m.At(1, y), float32(0.99))
		require.Zero(t, m.At(2, y))
		require.Zero(t, m.At(3, y))
	}

	bin := m.Threshold(result.SegmentThreshold)
	require.Equal(t, 4, bin.Area())
}

func TestCalculateOverlap(t *testing.T) {
	require.InDelta(t, 1.0, calculateOverlap(0, 0, 10, 10, 0, 0, 10, 10), 1e-6)
	require.InDelta(t, 0.0, calculateOverlap(0, 0, 10, 10, 10, 10, 20, 20), 1e-6)
	require.InDelta(t, 25.0/175.0, calculateOverlap(0, 0, 10, 10, 5, 5, 15, 15), 1e-6)
}
