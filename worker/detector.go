package worker

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	crowdlabel "github.com/swdee/go-crowdlabel"
	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

// ErrInvalidResponse is returned when a worker response is internally
// inconsistent
var ErrInvalidResponse = errors.New("invalid worker response")

// frameBytes returns the raw BGR bytes of a frame
func frameBytes(frame gocv.Mat) ([]byte, error) {

	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	if frame.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("unsupported frame type %v, expected 8UC3", frame.Type())
	}

	return frame.ToBytes(), nil
}

// Detector is a person detector running in a worker process
type Detector struct {
	client *Client
	log    logrus.FieldLogger
}

// NewDetector returns a Detector sending requests through client
func NewDetector(client *Client, log logrus.FieldLogger) *Detector {

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Detector{
		client: client,
		log:    log,
	}
}

// Detect sends the frame to the worker and returns the people it found.
// Detections of other classes are dropped, boxes are clamped to the frame
// and those left without area are dropped.
func (d *Detector) Detect(frame gocv.Mat, params crowdlabel.DetectParams) ([]result.Detection, error) {

	data, err := frameBytes(frame)

	if err != nil {
		return nil, err
	}

	req := &DetectRequest{
		Type:    TypeDetect,
		Width:   frame.Cols(),
		Height:  frame.Rows(),
		Frame:   data,
		Conf:    params.Confidence,
		IoU:     params.IoU,
		ImgSize: params.ImgSize,
		Device:  params.Device,
	}

	var resp DetectResponse

	if err := d.client.call(req, &resp); err != nil {
		return nil, err
	}

	n := len(resp.Boxes)

	if len(resp.Scores) != n {
		return nil, fmt.Errorf("%w: %d boxes with %d scores", ErrInvalidResponse,
			n, len(resp.Scores))
	}

	if len(resp.Classes) != 0 && len(resp.Classes) != n {
		return nil, fmt.Errorf("%w: %d boxes with %d classes", ErrInvalidResponse,
			n, len(resp.Classes))
	}

	if len(resp.Masks) != 0 && len(resp.Masks) != n {
		return nil, fmt.Errorf("%w: %d boxes with %d masks", ErrInvalidResponse,
			n, len(resp.Masks))
	}

	dets := make([]result.Detection, 0, n)

	for i := 0; i < n; i++ {
		class := result.PersonClass

		if len(resp.Classes) != 0 {
			class = resp.Classes[i]
		}

		if class != result.PersonClass {
			continue
		}

		box := result.BoxFromArray(resp.Boxes[i]).Clamp(req.Width, req.Height)

		if !box.Valid() {
			d.log.WithField("box", resp.Boxes[i]).Debug("Dropping empty detection box")
			continue
		}

		det := result.Detection{
			Box:   box,
			Score: resp.Scores[i],
			Class: class,
		}

		if len(resp.Masks) != 0 {
			det.Mask, err = resp.Masks[i].Decode()

			if err != nil {
				return nil, fmt.Errorf("%w: mask %d: %w", ErrInvalidResponse, i, err)
			}
		}

		dets = append(dets, det)
	}

	d.log.WithFields(logrus.Fields{
		"returned": n,
		"people":   len(dets),
	}).Debug("Worker detections")

	return dets, nil
}
