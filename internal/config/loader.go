package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"wpre/internal/types"
)

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the process configuration.
//
// It performs the following steps in order:
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present (non-fatal if missing).
//  3. Processes envconfig tags to populate the Config struct.
//  4. Populates Config.Build from linker-injected variables.
//  5. Validates the struct and the cross-field rules.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// godotenv does NOT override variables already set in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct tag validation followed by the rules tags cannot
// express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.Database.Driver() == "" {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "DATABASE_URL must use postgres://, postgresql:// or sqlite://",
		}
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.Database.MinConns, cfg.Database.MaxConns),
		}
	}
	if _, err := cfg.Database.Defaults(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "PARAMS_DEFAULTS_JSON must be a JSON object",
			Err:     err,
		}
	}
	return nil
}

// Defaults decodes the default parameter document.
func (c DatabaseConfig) Defaults() (types.Parameters, error) {
	var params types.Parameters
	if err := json.Unmarshal([]byte(c.DefaultParams), &params); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, fmt.Errorf("defaults document is null")
	}
	return params, nil
}
