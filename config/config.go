// Package config provides configuration loading and management for
// sleuthbench.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sleuthbench configuration
type Config struct {
	Bench    BenchConfig    `yaml:"bench"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Registry RegistryConfig `yaml:"registry"`
	NATS     NATSConfig     `yaml:"nats"`
	Report   ReportConfig   `yaml:"report"`
}

// BenchConfig configures the benchmark sweep
type BenchConfig struct {
	// Workers are the worker names to benchmark (must exist in the registry)
	Workers []string `yaml:"workers"`
	// Cases is the number of generated cases per worker
	Cases int `yaml:"cases"`
	// ChunkSize is the summarization window budget in tokens
	ChunkSize int `yaml:"chunk_size"`
	// StepDelay paces consecutive windows
	StepDelay time.Duration `yaml:"step_delay"`
	// Seed fixes scenario generation for reproducible sweeps (0 = random)
	Seed uint64 `yaml:"seed"`
}

// ScenarioConfig configures generated transcripts
type ScenarioConfig struct {
	// TotalLines is the transcript length in dialogue lines
	TotalLines int `yaml:"total_lines"`
	// MarginLow and MarginHigh keep clue injections away from the edges
	MarginLow  int `yaml:"margin_low"`
	MarginHigh int `yaml:"margin_high"`
}

// RegistryConfig locates the worker registry
type RegistryConfig struct {
	// Path is a JSON registry file overlaying the built-in defaults
	// (empty = defaults only)
	Path string `yaml:"path"`
}

// NATSConfig configures result publication
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url"`
}

// ReportConfig configures artifact output
type ReportConfig struct {
	// Dir is the root directory for run records and CSV reports
	Dir string `yaml:"dir"`
	// CSVName is the aggregate report filename within Dir
	CSVName string `yaml:"csv_name"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bench: BenchConfig{
			Workers:   []string{"gemma"},
			Cases:     5,
			ChunkSize: 4000,
			StepDelay: 2 * time.Second,
		},
		Scenario: ScenarioConfig{
			TotalLines: 3000,
			MarginLow:  50,
			MarginHigh: 50,
		},
		NATS: NATSConfig{
			URL: "",
		},
		Report: ReportConfig{
			Dir:     "results",
			CSVName: "sleuthbench.csv",
		},
	}
}

// ApplyQuick shrinks the sweep for a fast smoke run.
func (c *Config) ApplyQuick() {
	c.Bench.Cases = 1
	c.Bench.ChunkSize = 500
	c.Bench.StepDelay = 0
	c.Scenario.TotalLines = 300
	c.Scenario.MarginLow = 20
	c.Scenario.MarginHigh = 20
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Bench.Workers) == 0 {
		return fmt.Errorf("bench.workers is required")
	}
	if c.Bench.Cases <= 0 {
		return fmt.Errorf("bench.cases must be positive")
	}
	if c.Bench.ChunkSize <= 0 {
		return fmt.Errorf("bench.chunk_size must be positive")
	}
	if c.Bench.StepDelay < 0 {
		return fmt.Errorf("bench.step_delay must not be negative")
	}
	if c.Scenario.TotalLines <= 0 {
		return fmt.Errorf("scenario.total_lines must be positive")
	}
	if c.Scenario.MarginLow < 0 || c.Scenario.MarginHigh < 0 {
		return fmt.Errorf("scenario margins must not be negative")
	}
	if c.Report.Dir == "" {
		return fmt.Errorf("report.dir is required")
	}
	if c.Report.CSVName == "" {
		return fmt.Errorf("report.csv_name is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from the given path, or defaults when the path
// is empty or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}
