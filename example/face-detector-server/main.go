// Command face-detector-server serves face detection over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/dimuls/ssdface"
	"github.com/dimuls/ssdface/internal/config"
	"github.com/dimuls/ssdface/internal/logging"
	"github.com/dimuls/ssdface/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "face-detector-server",
		Usage: "serve face detection over HTTP",
		Flags: append(config.CommonFlags(),
			&cli.StringFlag{
				Name:  config.FlagListen,
				Value: config.Default().Listen,
				Usage: "listen `ADDRESS`",
			},
			&cli.IntFlag{
				Name:  config.FlagQuality,
				Value: config.Default().JPEGQuality,
				Usage: "JPEG quality of returned face crops",
			},
		),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "face-detector-server: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("face-detector-server", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := ssdface.NewPool(cfg.ModelDir, cfg.Workers,
		ssdface.WithLogger(logger.Named("detector")))
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warnw("close detectors", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.New(pool, cfg.MinConfidence, cfg.JPEGQuality, logger.Named("http")).Handler(),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Infow("listening", "address", cfg.Listen, "workers", cfg.Workers)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
