// Package config loads ifkit settings from an optional ifkit.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up in a world directory.
const FileName = "ifkit.yaml"

// Config is the complete ifkit configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Load    LoadConfig    `yaml:"load"`
	Emit    EmitConfig    `yaml:"emit"`
	Play    PlayConfig    `yaml:"play"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is console or json.
	Format string `yaml:"format"`
}

// LoadConfig configures world loading.
type LoadConfig struct {
	// Parallelism bounds concurrent parsing and resolution (0 = GOMAXPROCS).
	Parallelism int `yaml:"parallelism"`
	// Strict turns validation warnings into errors.
	Strict bool `yaml:"strict"`
}

// EmitConfig configures Inform7 output.
type EmitConfig struct {
	// Output is the file written by emit; empty means stdout.
	Output string `yaml:"output"`
}

// PlayConfig configures play sessions.
type PlayConfig struct {
	SaveDir string `yaml:"save_dir"`
	Seed    int64  `yaml:"seed"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	saveDir := ".ifkit/saves"
	if home, err := os.UserHomeDir(); err == nil {
		saveDir = filepath.Join(home, ".ifkit", "saves")
	}
	return &Config{
		Log:  LogConfig{Level: "warn", Format: "console"},
		Play: PlayConfig{SaveDir: saveDir, Seed: 1},
	}
}

// Load reads path over Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from a world directory.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Load.Parallelism < 0 {
		return fmt.Errorf("load.parallelism must not be negative")
	}
	if c.Play.SaveDir == "" {
		return fmt.Errorf("play.save_dir is required")
	}
	return nil
}
