// Package ssdface detects faces with OpenCV DNN and the res10 Caffe SSD model.
package ssdface

import (
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dimuls/ssdface/internal/caffe"
	"github.com/dimuls/ssdface/internal/ssd"
)

// Model artifact file names expected in model directory.
const (
	PrototxtFileName = "deploy.prototxt"
	WeightsFileName  = "res10_300x300_ssd_iter_140000.caffemodel"
)

// Network input blob parameters. They are fixed by the way the network was
// trained.
var (
	blobSize  = image.Point{X: 224, Y: 224}
	blobMean  = gocv.NewScalar(104.0, 177.0, 123.0, 0)
	blobScale = 1.0
)

// network is a subset of gocv.Net used by Detector.
type network interface {
	SetInput(blob gocv.Mat, name string)
	Forward(outputName string) gocv.Mat
	Close() error
}

// Detector finds faces with ResNet-10 SSD network. It is not safe for
// concurrent use, see Pool.
type Detector struct {
	net    network
	opts   options
	logger *zap.SugaredLogger
}

// NewDetector loads model from modelDir, which must contain PrototxtFileName
// and WeightsFileName files. Missing, empty and malformed files and a network
// rejected by OpenCV are reported as *ModelLoadError.
func NewDetector(modelDir string, opts ...Option) (*Detector, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	prototxtPath := filepath.Join(modelDir, PrototxtFileName)
	weightsPath := filepath.Join(modelDir, WeightsFileName)

	for _, f := range []struct {
		path  string
		check func([]byte) error
	}{
		{prototxtPath, caffe.CheckPrototxt},
		{weightsPath, caffe.CheckWeights},
	} {
		if err := checkModelFile(f.path, f.check); err != nil {
			return nil, &ModelLoadError{Path: f.path, Err: err}
		}
	}

	net := gocv.ReadNetFromCaffe(prototxtPath, weightsPath)
	if net.Empty() {
		net.Close()
		return nil, &ModelLoadError{
			Path: modelDir,
			Err:  errors.New("network is empty after reading model files"),
		}
	}

	o.logger.Infow("face detection model loaded",
		"prototxt", prototxtPath, "weights", weightsPath)

	return newDetector(&net, o), nil
}

func newDetector(net network, o options) *Detector {
	return &Detector{
		net:    net,
		opts:   o,
		logger: o.logger,
	}
}

// checkModelFile rejects files OpenCV would fail on. The engine aborts the
// process on malformed input instead of returning an error.
func checkModelFile(path string, check func([]byte) error) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if fi.Size() == 0 {
		return errors.New("file is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return check(data)
}

// Close releases network. It is safe to call Close more than once.
func (d *Detector) Close() error {
	if d.net == nil {
		return nil
	}
	err := d.net.Close()
	d.net = nil
	return err
}

// MinConfidence returns confidence threshold used by Detect.
func (d *Detector) MinConfidence() float64 {
	return d.opts.minConfidence
}

// Detect finds faces on 3-channel BGR image using detector's confidence
// threshold. See DetectConfidence.
func (d *Detector) Detect(img gocv.Mat) ([]Detection, error) {
	return d.DetectConfidence(img, d.opts.minConfidence)
}

// DetectConfidence finds faces on 3-channel BGR image. Boxes with confidence
// below minConfidence, boxes leaving the image and boxes without area are
// dropped. Detections keep network output order. Face crops of the returned
// detections must be closed by the caller.
func (d *Detector) DetectConfidence(img gocv.Mat, minConfidence float64) ([]Detection, error) {
	if d.net == nil {
		return nil, ErrDetectorClosed
	}
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	if c := img.Channels(); c != 3 {
		return nil, errors.Errorf("expected 3-channel image, got %d channels", c)
	}

	raw, err := d.forward(img)
	if err != nil {
		return nil, err
	}

	width, height := img.Cols(), img.Rows()

	candidates, stats, err := ssd.Decode(raw, width, height, minConfidence)
	if err != nil {
		return nil, errors.Wrap(err, "decode detections")
	}

	d.logger.Debugw("faces detected",
		"width", width, "height", height,
		"min_confidence", minConfidence,
		"rows", stats.Rows,
		"below_confidence", stats.BelowConfidence,
		"invalid_box", stats.InvalidBox,
		"kept", stats.Kept())

	detections := make([]Detection, 0, len(candidates))

	for _, c := range candidates {
		region := img.Region(c.Rect)
		face := region.Clone()
		region.Close()

		detections = append(detections, Detection{
			Rectangle:  c.Rect,
			Confidence: c.Confidence,
			Face:       face,
		})
	}

	return detections, nil
}

// forward runs network on img and returns its output as flat float32 values.
// Returned slice is a copy and outlives network output Mat.
func (d *Detector) forward(img gocv.Mat) ([]float32, error) {
	blob := gocv.BlobFromImage(img, blobScale, blobSize, blobMean, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	out := d.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return nil, errors.New("network returned empty output")
	}
	if out.Type() != gocv.MatTypeCV32F {
		return nil, errors.Errorf("unexpected network output type %v", out.Type())
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read network output")
	}

	raw := make([]float32, len(data))
	copy(raw, data)

	return raw, nil
}
