package config

import (
	"fmt"
	"time"

	redisclient "github.com/clinicops/receivables/internal/infra/redis"
	"github.com/clinicops/receivables/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Lab      LabConfig          `yaml:"lab"`
	Retry    RetryConfig        `yaml:"retry"`
	Dispatch DispatchConfig     `yaml:"dispatch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LabConfig holds third-party lab endpoint settings.
type LabConfig struct {
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
}

// RetryConfig holds retry settings for remote calls.
type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	BaseDelay         Duration `yaml:"base_delay"`
	MaxDelay          Duration `yaml:"max_delay"`
	PerAttemptTimeout Duration `yaml:"per_attempt_timeout"`
}

// DispatchConfig holds dispatch worker settings.
type DispatchConfig struct {
	Enabled        bool     `yaml:"enabled"`
	EmptySleep     Duration `yaml:"empty_sleep"`
	BlockedRequeue Duration `yaml:"blocked_requeue"`
	FailedRequeue  Duration `yaml:"failed_requeue"`
	MaxSendRetries int      `yaml:"max_send_retries"`
}

// Duration wraps time.Duration so YAML may carry values like "500ms".
// Bare integers are read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
