// Package config defines the process configuration for the forecast relay.
// Configuration is loaded once at start-up and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes start-up to abort (fail fast).
package config

import (
	"strings"
	"time"

	"wpre/internal/types"
)

// SecretString is an alias for types.SecretString so secrets in the config
// tree never show up in logs.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"wpre"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	// RunMode selects between a long-running HTTP server and an API Gateway
	// Lambda handler.
	RunMode string `envconfig:"RUN_MODE" default:"http" validate:"oneof=http lambda"`

	Server        ServerConfig
	Source        SourceConfig
	Model         ModelConfig
	Forecast      ForecastConfig
	Dispatch      DispatchConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"5000" validate:"required,numeric"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// SourceConfig describes the external weather source. URL templates may
// contain {start}, {end} and {station} placeholders, replaced with epoch
// seconds and station identifiers. Templates are resolved per request so a
// missing template is reported as a data error, not a start-up failure.
type SourceConfig struct {
	RainURLTemplate string       `envconfig:"SOURCE_RAIN_URL"`
	TempURLTemplate string       `envconfig:"SOURCE_TEMP_URL"`
	Stations        []string     `envconfig:"SOURCE_STATIONS"`
	Format          string       `envconfig:"SOURCE_FORMAT" default:"json" validate:"oneof=json html"`
	APIKey          SecretString `envconfig:"SOURCE_API_KEY"`
	UserAgent       string       `envconfig:"SOURCE_USER_AGENT" default:"WPRE-Source/1.0"`

	Timeout         time.Duration `envconfig:"SOURCE_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxConcurrency  int           `envconfig:"SOURCE_MAX_CONCURRENCY" default:"4" validate:"min=1"`
	BreakerFailures uint32        `envconfig:"SOURCE_BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerCooldown time.Duration `envconfig:"SOURCE_BREAKER_COOLDOWN" default:"30s" validate:"gt=0"`
}

// ModelConfig points at the persisted temperature model and fitted scaler.
// Paths ending in .zst are decompressed on load.
type ModelConfig struct {
	ModelPath  string `envconfig:"MODEL_PATH" default:"artifacts/temp_model.json" validate:"required"`
	ScalerPath string `envconfig:"SCALER_PATH" default:"artifacts/temp_scaler.json" validate:"required"`
}

// ForecastConfig holds the admission window and the observation windows
// requested from the source.
type ForecastConfig struct {
	WindowSeconds int64         `envconfig:"FORECAST_WINDOW_SECONDS" default:"3600" validate:"min=1"`
	RainHorizon   time.Duration `envconfig:"RAIN_HORIZON" default:"1h" validate:"gt=0"`
	TempHistory   time.Duration `envconfig:"TEMP_HISTORY" default:"36h" validate:"gt=0"`
}

// DispatchConfig holds settings for downstream notification delivery.
type DispatchConfig struct {
	Workers   int           `envconfig:"DISPATCH_WORKERS" default:"2" validate:"min=1"`
	QueueSize int           `envconfig:"DISPATCH_QUEUE_SIZE" default:"64" validate:"min=1"`
	Timeout   time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"4s" validate:"gt=0"`
	// The downstream endpoint presents a self-signed certificate.
	TLSVerify bool   `envconfig:"DISPATCH_TLS_VERIFY" default:"false"`
	UserAgent string `envconfig:"DISPATCH_USER_AGENT" default:"WPRE-Notifier/1.0"`
	// BlockedCIDRs are never dialed, whatever dss_api_endpoint names.
	// DSS controllers usually sit on the local network, so only the
	// instance metadata service is blocked by default.
	BlockedCIDRs []string `envconfig:"DISPATCH_BLOCKED_CIDRS" default:"169.254.169.254/32" validate:"dive,cidr"`
}

// DatabaseConfig selects the parameter and error-log store. An empty URL
// keeps everything in memory.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"5" validate:"min=1"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`

	// DefaultParams is the JSON object restored by the reset endpoint.
	DefaultParams string `envconfig:"PARAMS_DEFAULTS_JSON" default:"{}" validate:"required,json"`
}

// Database drivers selected by the DATABASE_URL scheme.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Driver reports which store the URL selects, or "" for an unknown scheme.
func (c DatabaseConfig) Driver() string {
	raw := c.URL.Unmask()
	switch {
	case raw == "":
		return DriverMemory
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(raw, "sqlite://"):
		return DriverSQLite
	default:
		return ""
	}
}

// SQLitePath returns the file path portion of a sqlite:// URL.
func (c DatabaseConfig) SQLitePath() string {
	return strings.TrimPrefix(c.URL.Unmask(), "sqlite://")
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"WPRE"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be parsed into its
	// target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
