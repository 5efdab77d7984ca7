// Package config loads the worker configuration.
//
// Configuration comes from a single file named by the --config flag or the
// MOSAIC_CONFIG environment variable. YAML files (.yaml, .yml) are parsed
// with yaml.v3; JSON files (.json, .jsonc) may contain comments and
// trailing commas. Values absent from the file keep their defaults. Unknown
// keys are errors.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ocinpp/mosaic-generator/imageio"
	"github.com/ocinpp/mosaic-generator/tiler"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "MOSAIC_CONFIG"

// Config is the complete worker configuration.
type Config struct {
	Mosaic  MosaicConfig  `yaml:"mosaic" json:"mosaic"`
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
	Decode  DecodeConfig  `yaml:"decode" json:"decode"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MosaicConfig tunes the tile loop.
type MosaicConfig struct {
	// DefaultColorBlend applies when a start message omits
	// colorAdjustment. Default: 1 (pure texture).
	DefaultColorBlend float64 `yaml:"default_color_blend" json:"default_color_blend"`

	// ProgressEvery is the number of tiles between progress messages.
	// Default: 100.
	ProgressEvery int `yaml:"progress_every" json:"progress_every"`

	// Interpolator resamples target and pool images: nearest,
	// approx-bilinear, bilinear or catmull-rom. Default: bilinear.
	Interpolator string `yaml:"interpolator" json:"interpolator"`
}

// LimitsConfig bounds the resources of one job. Zero disables a limit.
type LimitsConfig struct {
	// MaxImageBytes caps the encoded size of any single image.
	MaxImageBytes int `yaml:"max_image_bytes" json:"max_image_bytes"`
	// MaxPoolImages caps the number of pool images per job.
	MaxPoolImages int `yaml:"max_pool_images" json:"max_pool_images"`
	// MaxPixels caps the decoded size of any single image.
	MaxPixels int `yaml:"max_pixels" json:"max_pixels"`
}

// DecodeConfig configures the decoder.
type DecodeConfig struct {
	// Parallelism is the number of images decoded at once.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// OutputConfig selects the mosaic encoding.
type OutputConfig struct {
	// Format is png or jpeg. Default: png.
	Format string `yaml:"format" json:"format"`
	// JPEGQuality is 1-100. Default: 90.
	JPEGQuality int `yaml:"jpeg_quality" json:"jpeg_quality"`
	// PNGCompression is default, none, speed or best.
	PNGCompression string `yaml:"png_compression" json:"png_compression"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level" json:"level"`
	// Format is text or json. Default: text.
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mosaic: MosaicConfig{
			DefaultColorBlend: 1,
			ProgressEvery:     tiler.DefaultProgressEvery,
			Interpolator:      "bilinear",
		},
		Limits: LimitsConfig{
			MaxImageBytes: 64 << 20,
			MaxPoolImages: 10000,
			MaxPixels:     64 << 20,
		},
		Decode: DecodeConfig{
			Parallelism: 4,
		},
		Output: OutputConfig{
			Format:         imageio.FormatPNG,
			JPEGQuality:    90,
			PNGCompression: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ResolvePath returns flagValue if set, otherwise the value of EnvVar.
// An empty result means "use defaults".
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvVar)
}

// Load reads path over Default and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error
	blend := c.Mosaic.DefaultColorBlend
	if math.IsNaN(blend) || blend < 0 || blend > 1 {
		errs = append(errs, fmt.Errorf("mosaic.default_color_blend %v outside [0,1]", blend))
	}
	if c.Mosaic.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("mosaic.progress_every must not be negative"))
	}
	if _, err := tiler.Interpolator(c.Mosaic.Interpolator); err != nil {
		errs = append(errs, fmt.Errorf("mosaic.interpolator: %w", err))
	}
	if c.Limits.MaxImageBytes < 0 || c.Limits.MaxPoolImages < 0 || c.Limits.MaxPixels < 0 {
		errs = append(errs, fmt.Errorf("limits must not be negative"))
	}
	if c.Decode.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("decode.parallelism must be at least 1"))
	}
	switch c.Output.Format {
	case imageio.FormatPNG, imageio.FormatJPEG:
	default:
		errs = append(errs, fmt.Errorf("output.format %q is not png or jpeg", c.Output.Format))
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("output.jpeg_quality %d outside 1-100", c.Output.JPEGQuality))
	}
	if _, err := imageio.ParsePNGCompression(c.Output.PNGCompression); err != nil {
		errs = append(errs, fmt.Errorf("output.png_compression: %w", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Logger builds a logger writing to w.
func (c LoggingConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
