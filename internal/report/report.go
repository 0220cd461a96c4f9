// Package report turns detections into JSON documents and crop files.
package report

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/dimuls/ssdface"
)

// Box is a face box as top-left corner, width and height in pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBox returns box of detection.
func NewBox(d ssdface.Detection) Box {
	x, y, w, h := d.Box()
	return Box{X: x, Y: y, Width: w, Height: h}
}

// Face is a one detected face.
type Face struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	File       string  `json:"file,omitempty"`
}

// Result holds faces of a one image of a source.
type Result struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Faces  []Face `json:"faces"`
	Error  string `json:"error,omitempty"`
}

// NewResult builds result without crop files.
func NewResult(source string, index int, name string, ds []ssdface.Detection) Result {
	faces := make([]Face, 0, len(ds))
	for _, d := range ds {
		faces = append(faces, Face{Confidence: d.Confidence, Box: NewBox(d)})
	}
	return Result{Source: source, Index: index, Name: name, Faces: faces}
}

// CropFileName returns name of crop file for face number n of image name.
func CropFileName(name string, n int) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer(" ", "_", "#", "_p").Replace(base)
	return fmt.Sprintf("%s_face%02d.jpg", base, n+1)
}

// SaveCrops writes face crops of r into dir as JPEG files and records their
// paths in r.
func SaveCrops(dir string, r *Result, crops []image.Image, quality int) error {
	for i, crop := range crops {
		path := filepath.Join(dir, CropFileName(r.Name, i))
		if err := imaging.Save(crop, path, imaging.JPEGQuality(quality)); err != nil {
			return errors.Wrapf(err, "save crop %s", path)
		}
		r.Faces[i].File = path
	}
	return nil
}

// Writer writes results as JSON lines. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Write(r Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(r)
}
