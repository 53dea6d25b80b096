// Package config holds the settings of a scan-splitting run.
//
// Values are layered: Default, then an optional YAML file (Load), then
// SCAN_SPLITTER_* environment variables (ApplyEnv), then command-line flags
// set by the caller. Validate checks the result once all layers are applied.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/scan-splitter/internal/deskew"
	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel  = "SCAN_SPLITTER_LOG_LEVEL"
	EnvSeparator = "SCAN_SPLITTER_SEPARATOR"
	EnvWorkers   = "SCAN_SPLITTER_WORKERS"
)

// SeparatorAuto asks for the separator to be detected from each scan's border.
const SeparatorAuto = "auto"

// Deskew failure policies.
const (
	// OnFailureKeep keeps the unrotated region and records a warning.
	OnFailureKeep = "keep"
	// OnFailureFail fails the whole source image.
	OnFailureFail = "fail"
)

// Config is the full configuration of a run.
type Config struct {
	InputDir      string       `yaml:"input_dir"`
	Patterns      []string     `yaml:"patterns"`
	Separator     string       `yaml:"separator"`
	OutputDirName string       `yaml:"output_dir_name"`
	Workers       int          `yaml:"workers"`
	Connectivity  int          `yaml:"connectivity"`
	AutoOrient    bool         `yaml:"auto_orient"`
	Report        string       `yaml:"report"`
	Verbose       bool         `yaml:"verbose"`
	Deskew        DeskewConfig `yaml:"deskew"`
	Watch         WatchConfig  `yaml:"watch"`
}

// DeskewConfig controls skew correction of extracted regions.
type DeskewConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OnFailure string `yaml:"on_failure"`
	Workers   int    `yaml:"workers"`

	deskew.Options `yaml:",inline"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is how long a new file must stay unchanged before it is
	// processed.
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Patterns:      []string{"*.png"},
		Separator:     imaging.DefaultSeparator.Hex(),
		OutputDirName: "Sauvegarde",
		Workers:       4,
		Connectivity:  int(detection.Connectivity8),
		Deskew: DeskewConfig{
			Enabled:   true,
			OnFailure: OnFailureKeep,
			Workers:   2,
			Options:   deskew.DefaultOptions(),
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SCAN_SPLITTER_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Verbose = strings.EqualFold(v, "debug")
	}
	if v := os.Getenv(EnvSeparator); v != "" {
		c.Separator = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	if len(c.Patterns) == 0 {
		return fmt.Errorf("at least one file pattern is required")
	}
	if c.OutputDirName == "" {
		return fmt.Errorf("output directory name is required")
	}
	if strings.ContainsAny(c.OutputDirName, `/\`) {
		return fmt.Errorf("output directory name %q must not contain a path separator", c.OutputDirName)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Connectivity != 4 && c.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", c.Connectivity)
	}
	if _, _, err := c.SeparatorColor(); err != nil {
		return err
	}

	d := c.Deskew
	if d.OnFailure != OnFailureKeep && d.OnFailure != OnFailureFail {
		return fmt.Errorf("deskew.on_failure must be %q or %q, got %q", OnFailureKeep, OnFailureFail, d.OnFailure)
	}
	if d.Workers < 1 {
		return fmt.Errorf("deskew.workers must be at least 1, got %d", d.Workers)
	}
	if d.CannyLow < 0 || d.CannyHigh > 255 || d.CannyLow > d.CannyHigh {
		return fmt.Errorf("deskew canny thresholds must satisfy 0 <= low <= high <= 255, got %d/%d", d.CannyLow, d.CannyHigh)
	}
	if d.MinAngle < 0 {
		return fmt.Errorf("deskew.min_angle must not be negative, got %g", d.MinAngle)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	return nil
}

// SeparatorColor parses the configured separator.
//
// Returns auto = true when the separator is to be detected per image, in
// which case the returned color is meaningless.
func (c *Config) SeparatorColor() (sep imaging.Separator, auto bool, err error) {
	if strings.EqualFold(strings.TrimSpace(c.Separator), SeparatorAuto) {
		return imaging.Separator{}, true, nil
	}
	sep, err = imaging.ParseSeparator(c.Separator)
	if err != nil {
		return imaging.Separator{}, false, fmt.Errorf("invalid separator: %w", err)
	}
	return sep, false, nil
}

// ExtractOptions returns the region growing options.
func (c *Config) ExtractOptions() detection.ExtractOptions {
	return detection.ExtractOptions{Connectivity: detection.Connectivity(c.Connectivity)}
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
