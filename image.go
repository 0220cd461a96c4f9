package ssdface

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FromImage converts Go image to 3-channel BGR Mat suitable for Detect. The
// returned Mat must be closed by the caller. On error the returned Mat is a
// zero value and must not be used.
func FromImage(img image.Image) (gocv.Mat, error) {
	if img.Bounds().Empty() {
		return gocv.Mat{}, ErrEmptyImage
	}
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		m.Close()
		return gocv.Mat{}, errors.Wrap(err, "convert image to mat")
	}
	return m, nil
}
