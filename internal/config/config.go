// Package config holds settings shared by face detector binaries.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is a face detector binaries configuration.
type Config struct {
	// ModelDir is a directory with deploy.prototxt and
	// res10_300x300_ssd_iter_140000.caffemodel.
	ModelDir      string  `yaml:"model_dir"`
	MinConfidence float64 `yaml:"min_confidence"`
	Workers       int     `yaml:"workers"`

	// OutputDir receives face crops. Crops are not saved when empty.
	OutputDir   string `yaml:"output_dir"`
	JPEGQuality int    `yaml:"jpeg_quality"`

	// DPI is used to render PDF pages.
	DPI int `yaml:"dpi"`

	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
}

// Default returns configuration with default values.
func Default() Config {
	return Config{
		ModelDir:      "./models",
		MinConfidence: 0.5,
		Workers:       1,
		JPEGQuality:   95,
		DPI:           150,
		Listen:        ":8080",
		LogLevel:      "info",
	}
}

// Load reads YAML file at path over default values. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	return cfg, nil
}

// Validate checks values which the detector itself accepts unchecked.
func (c Config) Validate() error {
	if c.ModelDir == "" {
		return errors.New("model directory is not set")
	}
	if !(c.MinConfidence >= 0 && c.MinConfidence <= 1) {
		return errors.Errorf("min confidence must be within [0, 1], got %v", c.MinConfidence)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.Errorf("jpeg quality must be within [1, 100], got %d", c.JPEGQuality)
	}
	if c.DPI < 1 {
		return errors.Errorf("dpi must be positive, got %d", c.DPI)
	}
	return nil
}
