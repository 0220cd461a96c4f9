// Command face-detector finds faces on images, image directories and PDF
// documents and prints one JSON line per image.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/dimuls/ssdface"
	"github.com/dimuls/ssdface/internal/batch"
	"github.com/dimuls/ssdface/internal/config"
	"github.com/dimuls/ssdface/internal/logging"
	"github.com/dimuls/ssdface/internal/report"
)

func main() {
	app := &cli.App{
		Name:      "face-detector",
		Usage:     "detect faces with ResNet-10 SSD network",
		ArgsUsage: "INPUT...",
		Flags: append(config.CommonFlags(),
			&cli.StringFlag{
				Name:    config.FlagOutput,
				Aliases: []string{"o"},
				Usage:   "save face crops as JPEG files into `DIR`",
			},
			&cli.IntFlag{
				Name:  config.FlagQuality,
				Value: config.Default().JPEGQuality,
				Usage: "JPEG quality of face crops",
			},
			&cli.IntFlag{
				Name:  config.FlagDPI,
				Value: config.Default().DPI,
				Usage: "resolution of rendered PDF pages",
			},
		),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "face-detector: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no inputs given")
	}

	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("face-detector", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	pool, err := ssdface.NewPool(cfg.ModelDir, cfg.Workers,
		ssdface.WithLogger(logger.Named("detector")),
		ssdface.WithMinConfidence(cfg.MinConfidence))
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warnw("close detectors", "error", err)
		}
	}()

	p := batch.NewProcessor(pool, cfg, report.NewWriter(os.Stdout), logger)

	var failed int
	for _, input := range c.Args().Slice() {
		n, err := p.ProcessInput(c.Context, input)
		if err != nil {
			return err
		}
		failed += n
	}

	if failed > 0 {
		return errors.Errorf("%d images failed", failed)
	}
	return nil
}
