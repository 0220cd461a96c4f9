package source

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ImageSource is a single image file or every image file of a directory.
type ImageSource struct {
	paths []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		return &ImageSource{paths: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && IsImage(entry.Name()) {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(paths)

	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) Len() int {
	return len(s.paths)
}

func (s *ImageSource) Name(index int) string {
	return s.paths[index]
}

// Image decodes image file at index applying its EXIF orientation.
func (s *ImageSource) Image(index int) (image.Image, error) {
	img, err := imaging.Open(s.paths[index], imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.paths[index])
	}
	return img, nil
}

func (s *ImageSource) Close() error {
	return nil
}
