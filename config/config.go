// Package config provides yaml-backed configuration for validation runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/LuisAnazgo/dss/sign/validation/timestamp"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidDigestName    = errors.New("invalid digest algorithm name")
	ErrMissingRequiredField = errors.New("missing required field")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ValidationConfig controls how a timestamp source validates the tokens it
// discovers.
type ValidationConfig struct {
	// LogLevel selects the zerolog level. Empty disables logging.
	LogLevel string `yaml:"log-level" json:"log_level,omitempty"`

	// ValidateTimestamps controls whether message imprints are matched
	// during the build. Defaults to true.
	ValidateTimestamps *bool `yaml:"validate-timestamps" json:"validate_timestamps,omitempty"`

	// WarnDigestAlgorithms lists imprint digest algorithm names (sha1,
	// sha256, sha384, sha512), checked by Check. SourceOptions does not pass
	// them to the timestamp source, and no token is flagged for using them.
	WarnDigestAlgorithms []string `yaml:"warn-digest-algorithms" json:"warn_digest_algorithms,omitempty"`
}

// DefaultValidationConfig returns the defaults: validation on, no logging.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{}
}

// LoadValidationConfig reads a ValidationConfig from a yaml file.
func LoadValidationConfig(path string) (*ValidationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	return ParseValidationConfig(data)
}

// ParseValidationConfig parses a ValidationConfig from yaml bytes.
func ParseValidationConfig(data []byte) (*ValidationConfig, error) {
	var cfg ValidationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check validates the field values.
func (c *ValidationConfig) Check() error {
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return &ConfigError{Field: "log-level", Message: c.LogLevel, Err: ErrInvalidLogLevel}
		}
	}
	for _, name := range c.WarnDigestAlgorithms {
		switch strings.ToLower(name) {
		case "sha1", "sha256", "sha384", "sha512":
		default:
			return &ConfigError{Field: "warn-digest-algorithms", Message: name, Err: ErrInvalidDigestName}
		}
	}
	return nil
}

// Logger builds a stderr logger at the configured level, or a disabled one
// when no level is set.
func (c *ValidationConfig) Logger() zerolog.Logger {
	if c.LogLevel == "" {
		return zerolog.Nop()
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// SourceOptions maps the configuration to timestamp source options.
func (c *ValidationConfig) SourceOptions() []timestamp.Option {
	opts := []timestamp.Option{
		timestamp.WithLogger(c.Logger()),
	}
	if c.ValidateTimestamps != nil {
		opts = append(opts, timestamp.WithValidation(*c.ValidateTimestamps))
	}
	return opts
}
