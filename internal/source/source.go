// Package source enumerates images to run face detection on: image files,
// directories of them and PDF pages.
package source

import (
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"
)

// Source is an ordered set of images.
type Source interface {
	Len() int
	Name(index int) string
	Image(index int) (image.Image, error)
	Close() error
}

// Open opens PDF document or image file or directory at path. PDF pages are
// rendered with dpi.
func Open(path string, dpi int) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewPDFSource(path, dpi)
	}
	return NewImageSource(path)
}

// PDFSource renders pages of PDF document.
type PDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewPDFSource(path string, dpi int) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open pdf %s", path)
	}
	return &PDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (s *PDFSource) Len() int {
	return s.doc.NumPage()
}

func (s *PDFSource) Name(index int) string {
	return filepath.Base(s.path) + "#" + strconv.Itoa(index+1)
}

// Image renders page at index. Each call opens its own document handle, so
// Image may be called concurrently.
func (s *PDFSource) Image(index int) (image.Image, error) {
	doc, err := fitz.New(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open pdf %s", s.path)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(index, float64(s.dpi))
	if err != nil {
		return nil, errors.Wrapf(err, "render page %d", index+1)
	}
	return img, nil
}

func (s *PDFSource) Close() error {
	return s.doc.Close()
}
