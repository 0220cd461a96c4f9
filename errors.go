package ssdface

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrModelLoad is matched by every model loading failure.
	ErrModelLoad = errors.New("load face detection model")

	// ErrDetectorClosed is returned by Detect after Close.
	ErrDetectorClosed = errors.New("detector is closed")

	// ErrEmptyImage is returned when detection is requested on empty image.
	ErrEmptyImage = errors.New("image is empty")

	// ErrPoolClosed is returned by Pool.Detect after Pool.Close.
	ErrPoolClosed = errors.New("detector pool is closed")
)

// ModelLoadError describes a model artifact which could not be loaded.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrModelLoad, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrModelLoad) hold for any ModelLoadError.
func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}
