// Package config handles configuration loading and validation for kbdgen.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/core/keymap"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// Environment variables that override file values.
const (
	EnvTarget    = "KBDGEN_TARGET"
	EnvLogLevel  = "KBDGEN_LOG_LEVEL"
	EnvLogFormat = "KBDGEN_LOG_FORMAT"
	EnvWorkers   = "KBDGEN_WORKERS"
)

// Config is the kbdgen configuration.
type Config struct {
	// Target is the generator target tag.
	Target string `toml:"target" yaml:"target" json:"target"`

	// Workers bounds parallel descriptor compilation. Zero means one per CPU.
	Workers int `toml:"workers" yaml:"workers" json:"workers"`

	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`

	// Templates maps a locale to a display-name template containing "%s".
	// Entries are merged over the built-in templates.
	Templates map[string]string `toml:"templates" yaml:"templates" json:"templates"`

	// DefaultTemplate names the template locale used when neither the
	// locale nor its base language has one.
	DefaultTemplate string `toml:"default_template" yaml:"default_template" json:"default_template"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Target:          "chromeos",
		Logging:         LoggingConfig{Level: "info", Format: "text"},
		DefaultTemplate: "en",
	}
}

// Option adjusts a Config after the file and environment have been applied.
type Option func(*Config)

// WithLogging overrides the log level and format. Empty values keep the
// loaded ones.
func WithLogging(level, format string) Option {
	return func(c *Config) {
		if level != "" {
			c.Logging.Level = level
		}
		if format != "" {
			c.Logging.Format = format
		}
	}
}

// Load reads the configuration at path, applies environment overrides and
// then opts, and validates the result. An empty path yields the defaults.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			return nil, errors.NewNotFound("config", path)
		case err != nil:
			return nil, errors.NewIO("read config", path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "toml":
		_, err = toml.Decode(string(data), cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, cfg)
	case "json":
		err = json.Unmarshal(data, cfg)
	default:
		return errors.NewUnsupported("config format", fmt.Sprintf("unknown extension %q", filepath.Ext(path)))
	}
	if err != nil {
		return &errors.ParseError{Format: format, Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// ApplyEnvOverrides applies KBDGEN_* environment variables on top of the
// current values.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvTarget); v != "" {
		c.Target = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &errors.ValidationError{Field: EnvWorkers, Value: v, Message: "not an integer", Err: err}
		}
		c.Workers = n
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if _, err := keymap.ForTarget(c.Target); err != nil {
		errs = append(errs, &errors.ValidationError{Field: "target", Value: c.Target, Message: "unsupported target", Err: err})
	}
	if c.Workers < 0 {
		errs = append(errs, errors.NewValidation("workers", "must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &errors.ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: err.Error()})
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs = append(errs, &errors.ValidationError{Field: "logging.format", Value: c.Logging.Format, Message: err.Error()})
	}
	for loc, tmpl := range c.Templates {
		if !strings.Contains(tmpl, "%s") {
			errs = append(errs, &errors.ValidationError{Field: "templates." + loc, Value: tmpl, Message: `missing "%s" placeholder`})
		}
	}
	if c.DefaultTemplate == "" {
		errs = append(errs, errors.NewValidation("default_template", "must not be empty"))
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}

// LogFormat returns the parsed log format.
func (c *Config) LogFormat() logging.Format {
	format, _ := logging.ParseFormat(c.Logging.Format)
	return format
}
