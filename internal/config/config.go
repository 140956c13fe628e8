package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/crimson-sun/combatlog/internal/connector"
)

// Config holds all combatlog configuration.
type Config struct {
	LogLevel  string `env:"COMBATLOG_LOG_LEVEL" envDefault:"info"`
	Connector ConnectorConfig
	Engine    EngineConfig
	Output    OutputConfig
}

// ConnectorConfig holds connector-specific settings.
type ConnectorConfig struct {
	Provider string `env:"COMBATLOG_INPUT" envDefault:"file"`
}

// EngineConfig holds segmentation settings.
type EngineConfig struct {
	MinEncounterDuration time.Duration `env:"COMBATLOG_MIN_ENCOUNTER_DURATION" envDefault:"35s"`
}

// OutputConfig holds output destination settings. Relative paths resolve
// against the working directory.
type OutputConfig struct {
	IntermediatePath string `env:"COMBATLOG_INTERMEDIATE_PATH" envDefault:"combat_log_with_floats.csv"`
	Path             string `env:"COMBATLOG_OUTPUT_PATH"       envDefault:"filtered_combat_log.csv"`
	SQLitePath       string `env:"COMBATLOG_SQLITE_PATH"` // empty disables the SQLite sink
	Stdout           bool   `env:"COMBATLOG_OUTPUT_STDOUT"     envDefault:"false"`
	Pretty           bool   `env:"COMBATLOG_OUTPUT_PRETTY"     envDefault:"false"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks the configuration for errors. It collects all problems
// rather than stopping at the first one.
func (c Config) Validate() error {
	var errs []error

	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("COMBATLOG_LOG_LEVEL %q: must be debug, info, warn or error", c.LogLevel))
	}
	if _, err := connector.Get(c.Connector.Provider); err != nil {
		errs = append(errs, fmt.Errorf("COMBATLOG_INPUT: %w (have %s)", err, strings.Join(connector.Providers(), ", ")))
	}
	if c.Engine.MinEncounterDuration < 0 {
		errs = append(errs, fmt.Errorf("COMBATLOG_MIN_ENCOUNTER_DURATION must be >= 0, got %v", c.Engine.MinEncounterDuration))
	}
	if strings.TrimSpace(c.Output.IntermediatePath) == "" {
		errs = append(errs, errors.New("COMBATLOG_INTERMEDIATE_PATH must not be empty"))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("COMBATLOG_OUTPUT_PATH must not be empty"))
	}

	return errors.Join(errs...)
}
