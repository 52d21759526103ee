// Package config loads the optional daemon configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/iczelia/k16brightd/internal/logging"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/k16brightd/config.yaml"

// Config is the configuration file structure. Every field is optional;
// the zero Config runs the daemon with built-in defaults.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	BusAddress string `yaml:"bus_address"`
	SysfsRoot  string `yaml:"sysfs_root"`
}

// Load reads and parses a YAML config file. If the file does not exist,
// it returns an empty Config and a nil error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks values that would otherwise only fail at startup.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	if c.SysfsRoot != "" && !filepath.IsAbs(c.SysfsRoot) {
		return fmt.Errorf("sysfs_root: %q is not an absolute path", c.SysfsRoot)
	}
	return nil
}
