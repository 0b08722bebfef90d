// loader.go implements the configuration loading lifecycle:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate with go-playground/validator plus cross-field rules.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
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

// loaderDeps holds the injectable dependencies for the loader.
type loaderDeps struct {
	loadDotenv func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		loadDotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the configuration from the environment.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv does not override variables already set in the environment,
	// and a missing .env file is expected outside local development.
	if deps.loadDotenv != nil {
		_ = deps.loadDotenv()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.NeedsDatabase() && !cfg.Database.URL.IsSet() {
		return nil, &ConfigError{
			Type:    ErrMissingEnv,
			Message: "DATABASE_URL is required when DATASET_SOURCE or KNOWLEDGE_SOURCE is postgres",
		}
	}

	return &cfg, nil
}
