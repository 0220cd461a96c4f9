// Package batch runs face detection over image sources and reports results in
// source order.
package batch

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/dimuls/ssdface"
	"github.com/dimuls/ssdface/internal/config"
	"github.com/dimuls/ssdface/internal/report"
	"github.com/dimuls/ssdface/internal/source"
)

// Detector finds faces on image. ssdface.Pool implements it.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]ssdface.Detection, error)
}

// Processor detects faces on every image of a source with up to cfg.Workers
// images in flight.
type Processor struct {
	detector Detector
	cfg      config.Config
	out      *report.Writer
	logger   *zap.SugaredLogger
}

func NewProcessor(detector Detector, cfg config.Config, out *report.Writer, logger *zap.SugaredLogger) *Processor {
	return &Processor{
		detector: detector,
		cfg:      cfg,
		out:      out,
		logger:   logger,
	}
}

// ProcessInput opens input as a source and processes it. See ProcessSource.
func (p *Processor) ProcessInput(ctx context.Context, input string) (int, error) {
	src, err := source.Open(input, p.cfg.DPI)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return p.ProcessSource(ctx, input, src)
}

// ProcessSource detects faces on every image of src and writes results in
// source order. Failed images are reported in their results and counted in the
// returned number; only cancellation and write failures are returned as error.
func (p *Processor) ProcessSource(ctx context.Context, input string, src source.Source) (int, error) {
	p.logger.Infow("processing input", "input", input, "images", src.Len())

	results := make([]report.Result, src.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i := 0; i < src.Len(); i++ {
		g.Go(func() error {
			r, err := p.processImage(ctx, input, src, i)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				p.logger.Warnw("image failed", "name", src.Name(i), "error", err)
				r.Error = err.Error()
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
		if err := p.out.Write(r); err != nil {
			return failed, errors.Wrap(err, "write result")
		}
	}

	return failed, nil
}

func (p *Processor) processImage(ctx context.Context, input string, src source.Source, i int) (report.Result, error) {
	name := src.Name(i)
	r := report.Result{Source: input, Index: i, Name: name, Faces: []report.Face{}}

	img, err := src.Image(i)
	if err != nil {
		return r, err
	}

	mat, err := ssdface.FromImage(img)
	if err != nil {
		return r, err
	}
	defer mat.Close()

	detections, err := p.detector.Detect(ctx, mat, p.cfg.MinConfidence)
	if err != nil {
		return r, err
	}
	defer ssdface.CloseAll(detections)

	r = report.NewResult(input, i, name, detections)

	p.logger.Debugw("image processed", "name", name, "faces", len(detections))

	if p.cfg.OutputDir == "" || len(detections) == 0 {
		return r, nil
	}

	crops := make([]image.Image, 0, len(detections))
	for _, d := range detections {
		crop, err := d.ToImage()
		if err != nil {
			return r, errors.Wrap(err, "convert face crop")
		}
		crops = append(crops, crop)
	}

	return r, report.SaveCrops(p.cfg.OutputDir, &r, crops, p.cfg.JPEGQuality)
}
