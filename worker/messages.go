package worker

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/swdee/go-crowdlabel/result"
	"github.com/x448/float16"
)

const (
	TypeDetect = "detect"
	TypeRefine = "refine"
)

// Mask payload element types
const (
	DtypeFloat32 = "float32"
	DtypeFloat16 = "float16"
	DtypeUint8   = "uint8"
	DtypeBool    = "bool"
)

// DetectRequest asks the worker to detect people in a BGR frame
type DetectRequest struct {
	Type    string  `msgpack:"type"`
	Seq     uint64  `msgpack:"seq"`
	Width   int     `msgpack:"width"`
	Height  int     `msgpack:"height"`
	Frame   []byte  `msgpack:"frame"`
	Conf    float32 `msgpack:"conf"`
	IoU     float32 `msgpack:"iou"`
	ImgSize int     `msgpack:"imgsz"`
	Device  string  `msgpack:"device"`
}

func (r *DetectRequest) setSeq(seq uint64) { r.Seq = seq }

// DetectResponse carries parallel arrays with one entry per detection
type DetectResponse struct {
	Seq     uint64        `msgpack:"seq"`
	Boxes   [][4]float32  `msgpack:"boxes"`
	Scores  []float32     `msgpack:"scores"`
	Classes []int         `msgpack:"classes"`
	Masks   []MaskPayload `msgpack:"masks"`
	Error   string        `msgpack:"error"`
}

func (r *DetectResponse) seq() uint64       { return r.Seq }
func (r *DetectResponse) remoteErr() string { return r.Error }

// RefineRequest asks the worker for candidate masks of the object in box
type RefineRequest struct {
	Type   string     `msgpack:"type"`
	Seq    uint64     `msgpack:"seq"`
	Width  int        `msgpack:"width"`
	Height int        `msgpack:"height"`
	Frame  []byte     `msgpack:"frame"`
	Box    [4]float32 `msgpack:"box"`
}

func (r *RefineRequest) setSeq(seq uint64) { r.Seq = seq }

// RefineResponse carries the candidate masks and their scores
type RefineResponse struct {
	Seq    uint64        `msgpack:"seq"`
	Masks  []MaskPayload `msgpack:"masks"`
	Scores []float32     `msgpack:"scores"`
	Error  string        `msgpack:"error"`
}

func (r *RefineResponse) seq() uint64       { return r.Seq }
func (r *RefineResponse) remoteErr() string { return r.Error }

// MaskPayload is a row-major mask as sent on the wire.  Multi-byte types are
// little endian.
type MaskPayload struct {
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`
	Dtype  string `msgpack:"dtype"`
	Data   []byte `msgpack:"data"`
}

// Decode converts the payload into a RawMask.  uint8 values are scaled by
// 1/255 unless the mask only holds 0 and 1, bool values become 0 or 1.
func (p MaskPayload) Decode() (*result.RawMask, error) {

	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("invalid mask size %dx%d", p.Width, p.Height)
	}

	n := p.Width * p.Height
	raw := result.NewRawMask(p.Width, p.Height)

	var elem int

	switch p.Dtype {
	case DtypeFloat32:
		elem = 4
	case DtypeFloat16:
		elem = 2
	case DtypeUint8, DtypeBool:
		elem = 1
	default:
		return nil, fmt.Errorf("unsupported mask dtype %q", p.Dtype)
	}

	if len(p.Data) != n*elem {
		return nil, fmt.Errorf("%s mask %dx%d has %d bytes, expected %d",
			p.Dtype, p.Width, p.Height, len(p.Data), n*elem)
	}

	scale := float32(255)

	if p.Dtype == DtypeUint8 && binaryBytes(p.Data) {
		scale = 1
	}

	for i := 0; i < n; i++ {
		switch p.Dtype {
		case DtypeFloat32:
			raw.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:]))
		case DtypeFloat16:
			raw.Data[i] = float16.Frombits(binary.LittleEndian.Uint16(p.Data[i*2:])).Float32()
		case DtypeUint8:
			raw.Data[i] = float32(p.Data[i]) / scale
		case DtypeBool:
			if p.Data[i] != 0 {
				raw.Data[i] = 1
			}
		}
	}

	return raw, nil
}

// binaryBytes reports whether every value is 0 or 1
func binaryBytes(data []byte) bool {

	for _, v := range data {
		if v > 1 {
			return false
		}
	}

	return true
}
