package postprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/swdee/go-crowdlabel/preprocess"
	"github.com/swdee/go-crowdlabel/result"
	"gonum.org/v1/gonum/mat"
)

// ErrTensorShape is returned when a model output does not have the layout of
// a YOLOv8/YOLO11 export
var ErrTensorShape = errors.New("unexpected tensor shape")

// Tensor is a dense float32 model output in row-major order
type Tensor struct {
	Shape []int
	Data  []float32
}

// size returns the number of elements described by the shape
func (t Tensor) size() int {

	if len(t.Shape) == 0 {
		return 0
	}

	n := 1

	for _, d := range t.Shape {
		n *= d
	}

	return n
}

// YOLOv8 defines the struct for YOLOv8 and YOLO11 model inference post
// processing on ONNX exports with a [1, 4+classes+coeffs, anchors] prediction
// tensor and an optional [1, coeffs, height, width] prototype tensor
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the score a bounding box must exceed to be considered
	// for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
	// FilterClass restricts results to boxes whose best class is this index.
	// Set to -1 to keep every class.
	FilterClass int
}

// YOLOv8PersonParams returns an instance of YOLOv8Params for a Model trained
// on the COCO dataset that only keeps people:
// - Box Threshold: 0.35
// - NMS Threshold: 0.5
// - Maximum Object Number: 300
func YOLOv8PersonParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.35,
		NMSThreshold:    0.5,
		MaxObjectNumber: 300,
		FilterClass:     result.PersonClass,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
	}
}

// candidate is a box that passed the score threshold
type candidate struct {
	anchor int
	box    result.Box
	class  int
}

// DetectObjects decodes the prediction tensor and, when proto is not nil,
// the instance masks.  Boxes are returned in source frame coordinates as
// described by resizer, masks cover the letterboxed content region at
// prototype resolution.
func (y *YOLOv8) DetectObjects(pred Tensor, proto *Tensor,
	resizer *preprocess.Resizer) ([]result.Detection, error) {

	if len(pred.Shape) != 3 || pred.Shape[0] != 1 || pred.size() != len(pred.Data) {
		return nil, fmt.Errorf("prediction %v: %w", pred.Shape, ErrTensorShape)
	}

	channels := pred.Shape[1]
	anchors := pred.Shape[2]

	coeffs := 0

	if proto != nil {
		if len(proto.Shape) != 4 || proto.Shape[0] != 1 || proto.size() != len(proto.Data) {
			return nil, fmt.Errorf("prototype %v: %w", proto.Shape, ErrTensorShape)
		}

		coeffs = proto.Shape[1]
	}

	classes := channels - 4 - coeffs

	if classes <= 0 {
		return nil, fmt.Errorf("prediction %v with %d mask coefficients: %w",
			pred.Shape, coeffs, ErrTensorShape)
	}

	at := func(c, a int) float32 {
		return pred.Data[c*anchors+a]
	}

	var cands []candidate
	var objProbs []float32
	var filterBoxes []float32

	for a := 0; a < anchors; a++ {

		bestClass := 0
		bestScore := at(4, a)

		for c := 1; c < classes; c++ {
			if s := at(4+c, a); s > bestScore {
				bestScore = s
				bestClass = c
			}
		}

		if y.Params.FilterClass >= 0 && bestClass != y.Params.FilterClass {
			continue
		}

		if bestScore <= y.Params.BoxThreshold {
			continue
		}

		cx, cy := at(0, a), at(1, a)
		hw, hh := at(2, a)/2, at(3, a)/2

		box := result.Box{X1: cx - hw, Y1: cy - hh, X2: cx + hw, Y2: cy + hh}

		cands = append(cands, candidate{anchor: a, box: box, class: bestClass})
		objProbs = append(objProbs, bestScore)
		filterBoxes = append(filterBoxes, box.X1, box.Y1, box.X2, box.Y2)
	}

	validCount := len(cands)

	if validCount == 0 {
		return nil, nil
	}

	indexArray := make([]int, validCount)

	for i := range indexArray {
		indexArray[i] = i
	}

	quickSortIndiceInverse(objProbs, 0, validCount-1, indexArray)
	nms(validCount, filterBoxes, indexArray, y.Params.NMSThreshold)

	var kept []candidate
	var dets []result.Detection

	for i := 0; i < validCount; i++ {
		if indexArray[i] == -1 || len(kept) >= y.Params.MaxObjectNumber {
			continue
		}

		c := cands[indexArray[i]]
		box := resizer.Reverse(c.box)

		// boxes lying wholly in the letterbox border collapse when clamped
		if !box.Valid() {
			continue
		}

		kept = append(kept, c)

		dets = append(dets, result.Detection{
			Box:   box,
			Score: objProbs[i],
			Class: c.class,
		})
	}

	if coeffs == 0 {
		return dets, nil
	}

	masks := y.segmentMasks(kept, func(k, a int) float32 {
		return at(4+classes+k, a)
	}, *proto, resizer)

	for i := range dets {
		dets[i].Mask = masks[i]
	}

	return dets, nil
}

// segmentMasks combines each kept box's mask coefficients with the prototype
// tensor, then crops the result to the box and to the letterbox content
func (y *YOLOv8) segmentMasks(kept []candidate, coeffAt func(k, a int) float32,
	proto Tensor, resizer *preprocess.Resizer) []*result.RawMask {

	nm := proto.Shape[1]
	mh := proto.Shape[2]
	mw := proto.Shape[3]

	coeffs := make([]float64, len(kept)*nm)

	for i, c := range kept {
		for k := 0; k < nm; k++ {
			coeffs[i*nm+k] = float64(coeffAt(k, c.anchor))
		}
	}

	protos := make([]float64, len(proto.Data))

	for i, v := range proto.Data {
		protos[i] = float64(v)
	}

	var prod mat.Dense
	prod.Mul(mat.NewDense(len(kept), nm, coeffs), mat.NewDense(nm, mh*mw, protos))

	sx := float32(mw) / float32(resizer.DestWidth())
	sy := float32(mh) / float32(resizer.DestHeight())

	content := resizer.ContentRect(sx, sy).Intersect(image.Rect(0, 0, mw, mh))
	masks := make([]*result.RawMask, len(kept))

	for i, c := range kept {
		row := prod.RawRowView(i)
		raw := result.NewRawMask(content.Dx(), content.Dy())

		bx1, by1 := c.box.X1*sx, c.box.Y1*sy
		bx2, by2 := c.box.X2*sx, c.box.Y2*sy

		for py := content.Min.Y; py < content.Max.Y; py++ {
			fy := float32(py)

			if fy < by1 || fy >= by2 {
				continue
			}

			for px := content.Min.X; px < content.Max.X; px++ {
				fx := float32(px)

				if fx < bx1 || fx >= bx2 {
					continue
				}

				raw.Data[(py-content.Min.Y)*raw.Width+(px-content.Min.X)] =
					float32(sigmoid(row[py*mw+px]))
			}
		}

		masks[i] = raw
	}

	return masks
}
