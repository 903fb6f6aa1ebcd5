package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	crowdlabel "github.com/swdee/go-crowdlabel"
	"github.com/swdee/go-crowdlabel/dnn"
	"github.com/swdee/go-crowdlabel/render"
	"github.com/swdee/go-crowdlabel/worker"
)

const (
	backendDNN    = "dnn"
	backendWorker = "worker"
)

// options are the parsed command line flags
type options struct {
	video         string
	out           string
	model         string
	conf          float64
	iou           float64
	imgsz         int
	device        string
	useMasks      bool
	stride        int
	samRefine     bool
	samCheckpoint string
	samModel      string
	backend       string
	detectorCmd   string
	refinerCmd    string
	color         string
	alpha         float64
	thickness     int
	logLevel      string
	noProgress    bool
}

func parseArgs(args []string) (*options, error) {

	parser := argparse.NewParser("crowdlabel", "Detect people in a video and write an annotated copy")

	video := parser.String("", "video", &argparse.Options{Help: "Path to input video", Default: "input/crowd.mp4"})
	out := parser.String("", "out", &argparse.Options{Help: "Path to output annotated video", Default: "output/out.mp4"})
	model := parser.String("", "model", &argparse.Options{Help: "YOLO ONNX model (detection or -seg)", Default: "yolo11n-seg.onnx"})
	conf := parser.Float("", "conf", &argparse.Options{Help: "Confidence threshold", Default: 0.35})
	iou := parser.Float("", "iou", &argparse.Options{Help: "IoU threshold for NMS", Default: 0.5})
	imgsz := parser.Int("", "imgsz", &argparse.Options{Help: "Inference size (longer side)", Default: 640})
	device := parser.String("", "device", &argparse.Options{Help: "Device: cpu, cuda or cuda:N", Default: "cuda"})
	useMasks := parser.Flag("", "use-masks", &argparse.Options{Help: "Draw instance masks (requires a -seg model)"})
	stride := parser.Int("", "stride", &argparse.Options{Help: "Process every Nth frame, others are copied unmodified", Default: 1})
	samRefine := parser.Flag("", "sam-refine", &argparse.Options{Help: "Refine masks from detector boxes with SAM"})
	samCheckpoint := parser.String("", "sam-checkpoint", &argparse.Options{Help: "Path to sam_vit_*.pth checkpoint (required with --sam-refine)"})
	samModel := parser.Selector("", "sam-model", worker.Models, &argparse.Options{Help: "SAM model type", Default: "vit_b"})
	backend := parser.Selector("", "backend", []string{backendDNN, backendWorker}, &argparse.Options{Help: "Detector backend", Default: backendDNN})
	detectorCmd := parser.String("", "detector-cmd", &argparse.Options{Help: "Detector worker command used with --backend worker", Default: "yolo_worker"})
	refinerCmd := parser.String("", "refiner-cmd", &argparse.Options{Help: "SAM worker command used with --sam-refine", Default: "sam_worker"})
	clr := parser.Selector("", "color", render.ColorNames(), &argparse.Options{Help: "Annotation color", Default: "person"})
	alpha := parser.Float("", "alpha", &argparse.Options{Help: "Mask opacity", Default: render.DefaultAlpha})
	thickness := parser.Int("", "thickness", &argparse.Options{Help: "Box border thickness", Default: 2})
	logLevel := parser.Selector("", "log-level", []string{"debug", "info", "warn", "error"}, &argparse.Options{Help: "Log level", Default: "info"})
	noProgress := parser.Flag("", "no-progress", &argparse.Options{Help: "Disable the progress bar"})

	if err := parser.Parse(args); err != nil {
		return nil, errors.New(parser.Usage(err))
	}

	return &options{
		video:         *video,
		out:           *out,
		model:         *model,
		conf:          *conf,
		iou:           *iou,
		imgsz:         *imgsz,
		device:        *device,
		useMasks:      *useMasks,
		stride:        *stride,
		samRefine:     *samRefine,
		samCheckpoint: *samCheckpoint,
		samModel:      *samModel,
		backend:       *backend,
		detectorCmd:   *detectorCmd,
		refinerCmd:    *refinerCmd,
		color:         *clr,
		alpha:         *alpha,
		thickness:     *thickness,
		logLevel:      *logLevel,
		noProgress:    *noProgress,
	}, nil
}

// config builds the pipeline configuration from the flags
func (o *options) config() crowdlabel.Config {

	cfg := crowdlabel.DefaultConfig()

	cfg.Detect = crowdlabel.DetectParams{
		Confidence: float32(o.conf),
		IoU:        float32(o.iou),
		ImgSize:    o.imgsz,
		Device:     o.device,
	}
	cfg.UseMasks = o.useMasks
	cfg.Stride = o.stride
	cfg.Refine = o.samRefine
	cfg.RefineCheckpoint = o.samCheckpoint
	cfg.RefineModel = o.samModel
	cfg.Alpha = float32(o.alpha)
	cfg.Thickness = o.thickness

	if clr, ok := render.ColorByName(o.color); ok {
		cfg.Color = clr
	}

	return cfg
}

// detectorCommand returns the detector worker command line
func (o *options) detectorCommand() []string {
	return append(strings.Fields(o.detectorCmd), "--model", o.model, "--device", o.device)
}

// refinerCommand returns the SAM worker command line
func (o *options) refinerCommand() []string {

	fields := strings.Fields(o.refinerCmd)

	if len(fields) == 0 {
		return nil
	}

	cmd := worker.RefinerCommand(fields[0], o.samCheckpoint, o.samModel, o.device)

	return append(cmd[:1], append(fields[1:], cmd[1:]...)...)
}

func newLogger(level string) (*logrus.Logger, error) {

	lvl, err := logrus.ParseLevel(level)

	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return log, nil
}

func run(ctx context.Context, o *options, log logrus.FieldLogger,
	extra ...crowdlabel.Option) error {

	cfg := o.config()

	// configuration errors are reported before any model, worker or video
	// is opened
	if err := cfg.Validate(); err != nil {
		return err
	}

	// workers outlive cancellation of ctx so an interrupted run stops between
	// frames, they are stopped by Process.Close
	wctx := context.WithoutCancel(ctx)

	var detector crowdlabel.Detector

	switch o.backend {
	case backendWorker:
		proc, err := worker.Start(wctx, o.detectorCommand(), log.WithField("role", "detector"))

		if err != nil {
			return err
		}

		defer proc.Close()
		detector = worker.NewDetector(proc.Client, log)

	default:
		det, err := dnn.NewDetector(o.model, o.device, log)

		if err != nil {
			return err
		}

		defer det.Close()
		detector = det
	}

	opts := []crowdlabel.Option{
		crowdlabel.WithLogger(log),
	}

	if !o.noProgress {
		opts = append(opts, crowdlabel.WithProgress(crowdlabel.ProgressBar(os.Stderr)))
	}

	if cfg.Refine {
		proc, err := worker.Start(wctx, o.refinerCommand(), log.WithField("role", "refiner"))

		if err != nil {
			return err
		}

		defer proc.Close()
		opts = append(opts, crowdlabel.WithRefiner(worker.NewRefiner(proc.Client)))
	}

	pipe, err := crowdlabel.New(cfg, detector, append(opts, extra...)...)

	if err != nil {
		return err
	}

	_, err = pipe.Run(ctx, o.video, o.out)

	return err
}

func main() {

	opts, err := parseArgs(os.Args)

	if err != nil {
		fmt.Print(err)
		os.Exit(1)
	}

	logger, err := newLogger(opts.logLevel)

	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	log := logger.WithField("run", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.WithError(err).Error("crowdlabel failed")
		stop()
		os.Exit(1)
	}
}
