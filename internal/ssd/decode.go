// Package ssd decodes the detection tensor of Single-Shot Detector networks
// into pixel-space boxes.
package ssd

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// RowSize is a number of fields in one detection row.
const RowSize = 7

// Field offsets inside a detection row:
// [batch, class, confidence, x1, y1, x2, y2].
const (
	FieldBatch = iota
	FieldClass
	FieldConfidence
	FieldStartX
	FieldStartY
	FieldEndX
	FieldEndY
)

// Candidate is a detection row which passed the confidence filter and box
// validation.
type Candidate struct {
	Class      int
	Confidence float64
	Rect       image.Rectangle
}

// Stats counts what happened to the rows of one decoded tensor.
type Stats struct {
	Rows            int
	BelowConfidence int
	InvalidBox      int
}

// Kept is a number of rows which became candidates.
func (s Stats) Kept() int {
	return s.Rows - s.BelowConfidence - s.InvalidBox
}

// Decode converts raw network output into candidates for an image of the given
// size. Coordinates are normalized to [0,1] and get truncated toward zero after
// scaling. Rows scoring below minConfidence (compared in float32) and boxes
// which leave the image or have no area are dropped. Candidate order follows
// row order.
func Decode(raw []float32, width, height int, minConfidence float64) ([]Candidate, Stats, error) {
	var stats Stats

	if len(raw)%RowSize != 0 {
		return nil, stats, errors.Errorf("detections tensor has %d values, not a multiple of %d", len(raw), RowSize)
	}
	if width <= 0 || height <= 0 {
		return nil, stats, errors.Errorf("invalid image size %dx%d", width, height)
	}

	stats.Rows = len(raw) / RowSize

	var candidates []Candidate

	for i := 0; i < stats.Rows; i++ {
		row := raw[i*RowSize : (i+1)*RowSize]

		// Scores are float32, so the threshold is compared at float32 precision:
		// a score of float32(0.7) passes a 0.7 threshold. NaN fails the check.
		if !(row[FieldConfidence] >= float32(minConfidence)) {
			stats.BelowConfidence++
			continue
		}

		rect, ok := Box(row, width, height)
		if !ok {
			stats.InvalidBox++
			continue
		}

		candidates = append(candidates, Candidate{
			Class:      int(row[FieldClass]),
			Confidence: float64(row[FieldConfidence]),
			Rect:       rect,
		})
	}

	return candidates, stats, nil
}

// Box denormalizes the box of a detection row. It reports false when any
// corner falls outside [0,width) x [0,height) or the box has no area.
func Box(row []float32, width, height int) (image.Rectangle, bool) {
	startX, ok := pixel(row[FieldStartX], width)
	if !ok {
		return image.Rectangle{}, false
	}
	startY, ok := pixel(row[FieldStartY], height)
	if !ok {
		return image.Rectangle{}, false
	}
	endX, ok := pixel(row[FieldEndX], width)
	if !ok {
		return image.Rectangle{}, false
	}
	endY, ok := pixel(row[FieldEndY], height)
	if !ok {
		return image.Rectangle{}, false
	}

	if endX <= startX || endY <= startY {
		return image.Rectangle{}, false
	}

	return image.Rectangle{
		Min: image.Point{X: startX, Y: startY},
		Max: image.Point{X: endX, Y: endY},
	}, true
}

func pixel(v float32, extent int) (int, bool) {
	p := math.Trunc(float64(v) * float64(extent))
	if math.IsNaN(p) || p < 0 || p >= float64(extent) {
		return 0, false
	}
	return int(p), true
}
