package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// OutputConfig selects where notes go
type OutputConfig struct {
	// Port is matched against MIDI output port names; empty picks the first.
	Port string `yaml:"port,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	TUI     bool   `yaml:"tui"`
	Palette string `yaml:"palette,omitempty" validate:"omitempty,endswith=.gpl"`
}

// Config is the app configuration. Program options such as tempo live in the
// program text, not here.
type Config struct {
	Output      OutputConfig `yaml:"output"`
	UI          UIConfig     `yaml:"ui"`
	Verbosity   int          `yaml:"verbosity" validate:"gte=0,lte=3"`
	MetricsAddr string       `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	Debug       bool         `yaml:"debug"`
	Watch       bool         `yaml:"watch"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{TUI: false},
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-celltone"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from its default location, or returns defaults if
// there is none.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Fields the file leaves out keep their
// defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating directories as needed.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
