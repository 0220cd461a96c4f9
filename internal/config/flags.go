package config

import (
	"github.com/urfave/cli/v2"
)

// Flag names.
const (
	FlagConfig        = "config"
	FlagModels        = "models"
	FlagMinConfidence = "min-confidence"
	FlagWorkers       = "workers"
	FlagOutput        = "output"
	FlagQuality       = "quality"
	FlagDPI           = "dpi"
	FlagListen        = "listen"
	FlagLogLevel      = "log-level"
)

// CommonFlags returns flags understood by every binary.
func CommonFlags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from YAML `FILE`, flags override it",
		},
		&cli.StringFlag{
			Name:    FlagModels,
			Aliases: []string{"m"},
			Value:   d.ModelDir,
			Usage:   "`DIR` with deploy.prototxt and res10_300x300_ssd_iter_140000.caffemodel",
		},
		&cli.Float64Flag{
			Name:  FlagMinConfidence,
			Value: d.MinConfidence,
			Usage: "minimum face confidence within [0, 1]",
		},
		&cli.IntFlag{
			Name:    FlagWorkers,
			Aliases: []string{"w"},
			Value:   d.Workers,
			Usage:   "number of detectors working in parallel",
		},
		&cli.StringFlag{
			Name:  FlagLogLevel,
			Value: d.LogLevel,
			Usage: "log level: debug, info, warn, error",
		},
	}
}

// FromContext loads configuration file given by FlagConfig, if any, and
// overrides its values with flags set on command line.
func FromContext(c *cli.Context) (Config, error) {
	cfg := Default()

	if path := c.String(FlagConfig); path != "" {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return cfg, err
		}
	}

	if c.IsSet(FlagModels) {
		cfg.ModelDir = c.String(FlagModels)
	}
	if c.IsSet(FlagMinConfidence) {
		cfg.MinConfidence = c.Float64(FlagMinConfidence)
	}
	if c.IsSet(FlagWorkers) {
		cfg.Workers = c.Int(FlagWorkers)
	}
	if c.IsSet(FlagOutput) {
		cfg.OutputDir = c.String(FlagOutput)
	}
	if c.IsSet(FlagQuality) {
		cfg.JPEGQuality = c.Int(FlagQuality)
	}
	if c.IsSet(FlagDPI) {
		cfg.DPI = c.Int(FlagDPI)
	}
	if c.IsSet(FlagListen) {
		cfg.Listen = c.String(FlagListen)
	}
	if c.IsSet(FlagLogLevel) {
		cfg.LogLevel = c.String(FlagLogLevel)
	}

	return cfg, cfg.Validate()
}
