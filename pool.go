package ssdface

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// Pool owns several detectors and lends them one at a time, so that each
// network handle is used by a single goroutine.
type Pool struct {
	detectors chan *Detector
	size      int

	closeOnce sync.Once
	done      chan struct{}
}

// NewPool loads size detectors from modelDir.
func NewPool(modelDir string, size int, opts ...Option) (*Pool, error) {
	return newPool(size, func() (*Detector, error) {
		return NewDetector(modelDir, opts...)
	})
}

func newPool(size int, newDetector func() (*Detector, error)) (*Pool, error) {
	if size < 1 {
		return nil, errors.Errorf("pool size must be positive, got %d", size)
	}

	p := &Pool{
		detectors: make(chan *Detector, size),
		size:      size,
		done:      make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		d, err := newDetector()
		if err != nil {
			close(p.detectors)
			for d := range p.detectors {
				err = multierr.Append(err, d.Close())
			}
			return nil, err
		}
		p.detectors <- d
	}

	return p, nil
}

// Size returns number of detectors in pool.
func (p *Pool) Size() int {
	return p.size
}

// Detect borrows a detector and runs DetectConfidence with it. It waits for a
// free detector until ctx is done.
func (p *Pool) Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]Detection, error) {
	d, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(d)

	return d.DetectConfidence(img, minConfidence)
}

func (p *Pool) acquire(ctx context.Context) (*Detector, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-p.detectors:
		// select picks randomly among ready cases, so recheck done.
		select {
		case <-p.done:
			p.release(d)
			return nil, ErrPoolClosed
		default:
			return d, nil
		}
	}
}

func (p *Pool) release(d *Detector) {
	p.detectors <- d
}

// Close waits for borrowed detectors to be returned and closes all of them.
// Detect fails with ErrPoolClosed once Close has started.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		for i := 0; i < p.size; i++ {
			d := <-p.detectors
			err = multierr.Append(err, d.Close())
		}
	})
	return err
}
