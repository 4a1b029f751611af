package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/sleuthbench/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4000, cfg.Bench.ChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Bench.StepDelay)
	assert.Equal(t, 3000, cfg.Scenario.TotalLines)
	assert.Equal(t, 50, cfg.Scenario.MarginLow)
	assert.NotEmpty(t, cfg.Bench.Workers)
	assert.Empty(t, cfg.NATS.URL, "publishing is opt-in")
}

func TestApplyQuick(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ApplyQuick()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Bench.Cases)
	assert.Equal(t, 500, cfg.Bench.ChunkSize)
	assert.Zero(t, cfg.Bench.StepDelay)
	assert.Less(t, cfg.Scenario.TotalLines, 1000)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no workers", func(c *config.Config) { c.Bench.Workers = nil }},
		{"zero cases", func(c *config.Config) { c.Bench.Cases = 0 }},
		{"zero chunk size", func(c *config.Config) { c.Bench.ChunkSize = 0 }},
		{"negative step delay", func(c *config.Config) { c.Bench.StepDelay = -time.Second }},
		{"zero lines", func(c *config.Config) { c.Scenario.TotalLines = 0 }},
		{"negative margin", func(c *config.Config) { c.Scenario.MarginLow = -1 }},
		{"no report dir", func(c *config.Config) { c.Report.Dir = "" }},
		{"no csv name", func(c *config.Config) { c.Report.CSVName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
bench:
  workers: [deepseek-cloud, gemma]
  cases: 3
  chunk_size: 2000
  step_delay: 500000000
scenario:
  total_lines: 1000
nats:
  url: nats://localhost:4222
report:
  dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"deepseek-cloud", "gemma"}, cfg.Bench.Workers)
	assert.Equal(t, 3, cfg.Bench.Cases)
	assert.Equal(t, 2000, cfg.Bench.ChunkSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Bench.StepDelay)
	assert.Equal(t, 1000, cfg.Scenario.TotalLines)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "out", cfg.Report.Dir)

	// Unset keys keep their defaults.
	assert.Equal(t, 50, cfg.Scenario.MarginLow)
	assert.Equal(t, "sleuthbench.csv", cfg.Report.CSVName)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bench: ["), 0o644))

	_, err := config.LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	cfg, err = config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Bench.Cases = 7
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
