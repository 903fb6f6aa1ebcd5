// Package dnn runs YOLOv8 and YOLO11 ONNX exports through the OpenCV DNN
// module
package dnn

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	crowdlabel "github.com/swdee/go-crowdlabel"
	"github.com/swdee/go-crowdlabel/postprocess"
	"github.com/swdee/go-crowdlabel/preprocess"
	"github.com/swdee/go-crowdlabel/result"
	"gocv.io/x/gocv"
)

const (
	// MaxDetections is the most people returned for a single frame
	MaxDetections = 300
	// sizeMultiple is the stride the model input size must align to
	sizeMultiple = 32
)

// ErrModelLoad is returned when the model file can not be read by OpenCV
var ErrModelLoad = errors.New("failed to load model")

// Backend pairs an OpenCV DNN backend with a target
type Backend struct {
	Backend gocv.NetBackendType
	Target  gocv.NetTargetType
}

// BackendFor maps an inference device to the OpenCV backend and target used
// to run on it
func BackendFor(dev crowdlabel.Device) Backend {

	if dev.Type == crowdlabel.DeviceCUDA {
		return Backend{Backend: gocv.NetBackendCUDA, Target: gocv.NetTargetCUDA}
	}

	return Backend{Backend: gocv.NetBackendDefault, Target: gocv.NetTargetCPU}
}

// AlignSize rounds size up to the next multiple of the model stride
func AlignSize(size int) int {

	if size <= 0 {
		return sizeMultiple
	}

	return (size + sizeMultiple - 1) / sizeMultiple * sizeMultiple
}

// Detector is a person detector backed by an OpenCV DNN network
type Detector struct {
	model    string
	net      gocv.Net
	outNames []string
	device   crowdlabel.Device
	resizer  *preprocess.Resizer
	input    gocv.Mat
	log      logrus.FieldLogger
	mu       sync.Mutex
}

// NewDetector loads the ONNX model and prepares it to run on device
func NewDetector(model string, device string, log logrus.FieldLogger) (*Detector, error) {

	dev, err := crowdlabel.ParseDevice(device)

	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	net := gocv.ReadNet(model, "")

	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, model)
	}

	d := &Detector{
		model: model,
		net:   net,
		input: gocv.NewMat(),
		log:   log.WithField("model", model),
	}

	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		d.outNames = append(d.outNames, layer.GetName())
		layer.Close()
	}

	d.setDevice(dev)

	d.log.WithField("outputs", d.outNames).Info("Model loaded")

	return d, nil
}

// setDevice switches the preferable backend and target of the network
func (d *Detector) setDevice(dev crowdlabel.Device) {

	b := BackendFor(dev)

	d.net.SetPreferableBackend(b.Backend)
	d.net.SetPreferableTarget(b.Target)
	d.device = dev

	if dev.Type == crowdlabel.DeviceCUDA && dev.Index > 0 {
		d.log.Warnf("OpenCV DNN runs on the current CUDA device, set CUDA_VISIBLE_DEVICES to select %s", dev)
	}

	d.log.WithField("device", dev.String()).Debug("Inference device set")
}

// Detect runs the network on frame and returns the people found
func (d *Detector) Detect(frame gocv.Mat, params crowdlabel.DetectParams) ([]result.Detection, error) {

	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	dev, err := crowdlabel.ParseDevice(params.Device)

	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if dev != d.device {
		d.setDevice(dev)
	}

	size := AlignSize(params.ImgSize)

	if d.resizer == nil || !d.resizer.Matches(frame.Cols(), frame.Rows(), size, size) {
		if d.resizer != nil {
			d.resizer.Close()
		}

		d.resizer = preprocess.NewResizer(frame.Cols(), frame.Rows(), size, size)
	}

	d.resizer.LetterBoxResize(frame, &d.input, preprocess.PadColor)

	blob := gocv.BlobFromImage(d.input, 1.0/255.0, image.Pt(size, size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	outs := d.net.ForwardLayers(d.outNames)

	tensors := make([]postprocess.Tensor, 0, len(outs))

	for _, out := range outs {
		t, err := toTensor(out)
		out.Close()

		if err != nil {
			return nil, err
		}

		tensors = append(tensors, t)
	}

	pred, proto, err := splitOutputs(tensors)

	if err != nil {
		return nil, err
	}

	yolo := postprocess.NewYOLOv8(postprocess.YOLOv8Params{
		BoxThreshold:    params.Confidence,
		NMSThreshold:    params.IoU,
		MaxObjectNumber: MaxDetections,
		FilterClass:     result.PersonClass,
	})

	return yolo.DetectObjects(pred, proto, d.resizer)
}

// Close releases the network and buffers
func (d *Detector) Close() error {

	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error

	if d.resizer != nil {
		errs = append(errs, d.resizer.Close())
		d.resizer = nil
	}

	errs = append(errs, d.input.Close(), d.net.Close())

	return errors.Join(errs...)
}

// toTensor copies an output blob out of OpenCV memory
func toTensor(m gocv.Mat) (postprocess.Tensor, error) {

	data, err := m.DataPtrFloat32()

	if err != nil {
		return postprocess.Tensor{}, fmt.Errorf("error reading output blob: %w", err)
	}

	return postprocess.Tensor{
		Shape: m.Size(),
		Data:  append([]float32(nil), data...),
	}, nil
}

// splitOutputs identifies the prediction and optional prototype tensors by
// their rank
func splitOutputs(tensors []postprocess.Tensor) (postprocess.Tensor, *postprocess.Tensor, error) {

	var pred, proto *postprocess.Tensor

	for i := range tensors {
		switch len(tensors[i].Shape) {
		case 3:
			if pred == nil {
				pred = &tensors[i]
			}
		case 4:
			if proto == nil {
				proto = &tensors[i]
			}
		}
	}

	if pred == nil {
		return postprocess.Tensor{}, nil, fmt.Errorf("no prediction output among %d outputs: %w",
			len(tensors), postprocess.ErrTensorShape)
	}

	return *pred, proto, nil
}
