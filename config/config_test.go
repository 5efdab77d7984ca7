package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "mosaic.yaml", `
mosaic:
  default_color_blend: 0.25
  interpolator: nearest
limits:
  max_pool_images: 50
output:
  format: jpeg
  jpeg_quality: 70
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.Mosaic.DefaultColorBlend)
	assert.Equal(t, "nearest", cfg.Mosaic.Interpolator)
	assert.Equal(t, 100, cfg.Mosaic.ProgressEvery)
	assert.Equal(t, 50, cfg.Limits.MaxPoolImages)
	assert.Equal(t, Default().Limits.MaxImageBytes, cfg.Limits.MaxImageBytes)
	assert.Equal(t, "jpeg", cfg.Output.Format)
	assert.Equal(t, 70, cfg.Output.JPEGQuality)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadZeroBlendIsKept(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.yml", "mosaic:\n  default_color_blend: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Mosaic.DefaultColorBlend)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadJSONC(t *testing.T) {
	path := writeFile(t, "mosaic.jsonc", `{
  // fewer decode goroutines on small machines
  "decode": {"parallelism": 2,},
  "mosaic": {"progress_every": 10},
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Decode.Parallelism)
	assert.Equal(t, 10, cfg.Mosaic.ProgressEvery)
}

func TestLoadRejects(t *testing.T) {
	for _, tc := range []struct {
		name, file, content, want string
	}{
		{"unknown yaml key", "c.yaml", "mosaic:\n  tile_shape: hex\n", "tile_shape"},
		{"unknown json key", "c.json", `{"output": {"colour": "red"}}`, "colour"},
		{"blend out of range", "c.yaml", "mosaic:\n  default_color_blend: 2\n", "default_color_blend"},
		{"bad interpolator", "c.yaml", "mosaic:\n  interpolator: lanczos\n", "interpolator"},
		{"bad format", "c.yaml", "output:\n  format: gif\n", "output.format"},
		{"bad quality", "c.yaml", "output:\n  jpeg_quality: 0\n", "jpeg_quality"},
		{"bad level", "c.yaml", "logging:\n  level: loud\n", "logging.level"},
		{"bad parallelism", "c.yaml", "decode:\n  parallelism: 0\n", "parallelism"},
		{"malformed", "c.yaml", "mosaic: [\n", "parsing config"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.file, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvVar, "/etc/mosaic.yaml")
	assert.Equal(t, "/etc/mosaic.yaml", ResolvePath(""))
	assert.Equal(t, "local.yaml", ResolvePath("local.yaml"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LoggingConfig{Level: "warn", Format: "json"}.Logger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "job", "abc")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"job":"abc"`)
}
