package ssdface

import (
	"go.uber.org/zap"
)

// DefaultMinConfidence is a minimum detection confidence used by Detect.
const DefaultMinConfidence = 0.5

type options struct {
	logger        *zap.SugaredLogger
	minConfidence float64
}

func defaultOptions() options {
	return options{
		logger:        zap.NewNop().Sugar(),
		minConfidence: DefaultMinConfidence,
	}
}

// Option configures Detector.
type Option func(*options)

// WithLogger sets logger. Detector logs model loading at info level and
// per call statistics at debug level.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMinConfidence sets confidence threshold used by Detect. The value is not
// range checked: negative values keep every box, values above 1 keep none.
func WithMinConfidence(minConfidence float64) Option {
	return func(o *options) {
		o.minConfidence = minConfidence
	}
}
