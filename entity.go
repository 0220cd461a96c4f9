package ssdface

import (
	"image"

	"gocv.io/x/gocv"
)

// Detection is a one face detection on image.
type Detection struct {
	// Rectangle is a face box in source image pixels. Max is exclusive.
	Rectangle image.Rectangle

	// Confidence is a network score of the box, between 0 and 1.
	Confidence float64

	// Face is a copy of the source image region bounded by Rectangle. It is
	// owned by the caller and must be closed.
	Face gocv.Mat
}

// Box returns face box as top-left corner, width and height.
func (d Detection) Box() (x, y, width, height int) {
	return d.Rectangle.Min.X, d.Rectangle.Min.Y, d.Rectangle.Dx(), d.Rectangle.Dy()
}

// ToImage converts face crop to Go image.
func (d Detection) ToImage() (image.Image, error) {
	return d.Face.ToImage()
}

// Close releases face crop.
func (d *Detection) Close() error {
	return d.Face.Close()
}

// CloseAll releases face crops of all detections.
func CloseAll(ds []Detection) {
	for i := range ds {
		ds[i].Close()
	}
}
