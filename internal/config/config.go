// Package config defines the process configuration for the AgroIA advisor.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"agroia/internal/types"
)

// SecretString is an alias for types.SecretString so secrets in configuration
// are redacted when logged.
type SecretString = types.SecretString

// Dataset sources.
const (
	DatasetSourceFile     = "file"
	DatasetSourcePostgres = "postgres"
)

// Predictor modes.
const (
	PredictorModeNone    = "none"
	PredictorModeFormula = "formula"
	PredictorModeRemote  = "remote"
)

// Knowledge sources.
const (
	KnowledgeSourceNone     = "none"
	KnowledgeSourcePostgres = "postgres"
	KnowledgeSourceMemory   = "memory"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"agroia-advisor"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Dataset       DatasetConfig
	Database      DatabaseConfig
	Predictor     PredictorConfig
	Knowledge     KnowledgeConfig
	Narrative     NarrativeConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build metadata, injected via ldflags rather than env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatasetConfig selects where the ZARC-style climate/risk table comes from.
type DatasetConfig struct {
	Source string `envconfig:"DATASET_SOURCE" default:"file" validate:"oneof=file postgres"`
	// Path is a CSV file, optionally zstd-compressed (".zst" suffix).
	Path string `envconfig:"DATASET_PATH" default:"data/processed/dataset_gold_mvp.csv" validate:"required_if=Source file"`
}

// DatabaseConfig holds database connection and pool tuning parameters. The URL
// is only required when the dataset or knowledge base live in Postgres.
type DatabaseConfig struct {
	URL               SecretString  `envconfig:"DATABASE_URL"`
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// PredictorConfig configures the yield predictor.
type PredictorConfig struct {
	Mode    string        `envconfig:"PREDICTOR_MODE" default:"formula" validate:"oneof=none formula remote"`
	URL     string        `envconfig:"PREDICTOR_URL" validate:"required_if=Mode remote"`
	APIKey  SecretString  `envconfig:"PREDICTOR_API_KEY"`
	Timeout time.Duration `envconfig:"PREDICTOR_TIMEOUT" default:"5s"`
}

// KnowledgeConfig configures the agronomy knowledge base used for retrieval.
type KnowledgeConfig struct {
	Source string `envconfig:"KNOWLEDGE_SOURCE" default:"none" validate:"oneof=none postgres memory"`
	// Dir holds .txt/.md/.html manuals for the in-memory store.
	Dir     string        `envconfig:"KNOWLEDGE_DIR" default:"data/manuals" validate:"required_if=Source memory"`
	Timeout time.Duration `envconfig:"KNOWLEDGE_TIMEOUT" default:"3s"`
}

// NarrativeConfig configures the hosted language model. An empty API key
// disables the generator; the advisor then reports the unavailable message.
type NarrativeConfig struct {
	GeminiAPIKey SecretString  `envconfig:"GEMINI_API_KEY"`
	Model        string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	Temperature  float32       `envconfig:"NARRATIVE_TEMPERATURE" default:"0.4"`
	MaxTokens    int32         `envconfig:"NARRATIVE_MAX_TOKENS" default:"400"`
	Timeout      time.Duration `envconfig:"NARRATIVE_TIMEOUT" default:"20s"`
}

// AWSConfig holds AWS regional configuration and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// RunEventsQueueURL receives recommendation.completed messages. Empty
	// disables publishing.
	RunEventsQueueURL string `envconfig:"RUN_EVENTS_QUEUE_URL" validate:"omitempty,url"`
	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AgroIA"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NeedsDatabase reports whether any component is configured to use Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Dataset.Source == DatasetSourcePostgres || c.Knowledge.Source == KnowledgeSourcePostgres
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
