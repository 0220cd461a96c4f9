package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
	"go.viam.com/test"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("model_dir: /opt/models\nmin_confidence: 0.7\nworkers: 4\n"), 0o644)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ModelDir, test.ShouldEqual, "/opt/models")
	test.That(t, cfg.MinConfidence, test.ShouldEqual, 0.7)
	test.That(t, cfg.Workers, test.ShouldEqual, 4)
	// untouched keys keep defaults
	test.That(t, cfg.DPI, test.ShouldEqual, Default().DPI)
	test.That(t, cfg.Listen, test.ShouldEqual, ":8080")
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(dir, "unknown.yaml")
	test.That(t, os.WriteFile(path, []byte("min_confidense: 0.7\n"), 0o644), test.ShouldBeNil)
	_, err = Load(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_confidense")
}

func TestValidate(t *testing.T) {
	test.That(t, Default().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		modify func(*Config)
	}{
		{"no model dir", func(c *Config) { c.ModelDir = "" }},
		{"negative confidence", func(c *Config) { c.MinConfidence = -0.1 }},
		{"confidence above one", func(c *Config) { c.MinConfidence = 1.01 }},
		{"nan confidence", func(c *Config) { c.MinConfidence = math.NaN() }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"bad quality", func(c *Config) { c.JPEGQuality = 101 }},
		{"bad dpi", func(c *Config) { c.DPI = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			test.That(t, cfg.Validate(), test.ShouldNotBeNil)
		})
	}

	cfg := Default()
	cfg.MinConfidence = 0
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	cfg.MinConfidence = 1
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func runFromContext(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	var (
		cfg    Config
		cfgErr error
	)
	app := &cli.App{
		Name: "test",
		Flags: append(CommonFlags(),
			&cli.StringFlag{Name: FlagOutput},
			&cli.IntFlag{Name: FlagDPI, Value: Default().DPI},
		),
		Action: func(c *cli.Context) error {
			cfg, cfgErr = FromContext(c)
			return nil
		},
	}
	test.That(t, app.Run(append([]string{"test"}, args...)), test.ShouldBeNil)
	return cfg, cfgErr
}

func TestFromContext(t *testing.T) {
	cfg, err := runFromContext(t)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())

	path := filepath.Join(t.TempDir(), "config.yaml")
	err = os.WriteFile(path, []byte("model_dir: /srv/models\nmin_confidence: 0.6\ndpi: 300\n"), 0o644)
	test.That(t, err, test.ShouldBeNil)

	cfg, err = runFromContext(t, "--config", path, "--min-confidence", "0.8", "--output", "crops")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ModelDir, test.ShouldEqual, "/srv/models")
	test.That(t, cfg.MinConfidence, test.ShouldEqual, 0.8)
	test.That(t, cfg.DPI, test.ShouldEqual, 300)
	test.That(t, cfg.OutputDir, test.ShouldEqual, "crops")

	_, err = runFromContext(t, "--min-confidence", "1.5")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min confidence")
}
