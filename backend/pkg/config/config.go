package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"lifegraph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string `env:"PORT" validate:"required,numeric"`
	Env      string `env:"ENV" validate:"oneof=development production test"`
	LogLevel string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// Storage
	StorageType      string `env:"STORAGE_TYPE" validate:"required"`
	StoragePath      string `env:"STORAGE_PATH" validate:"required_unless=StorageType neo4j"`
	ParseConcurrency int    `env:"PARSE_CONCURRENCY" validate:"min=1,max=64"`

	// Neo4j
	Neo4jURI      string `env:"NEO4J_URI" validate:"required_if=StorageType neo4j"`
	Neo4jUser     string `env:"NEO4J_USER"`
	Neo4jPassword string `env:"NEO4J_PASSWORD"`
	Neo4jDatabase string `env:"NEO4J_DATABASE"`

	// AI (optional; suggestions fall back to templates when LLMURL is empty)
	LLMURL    string `env:"LLM_URL" validate:"omitempty,url"`
	LLMAPIKey string `env:"LLM_API_KEY"`
	ModelID   string `env:"MODEL_ID" validate:"required_with=LLMURL"`
}

// Option mutates a loaded configuration before validation
type Option func(*Config)

// WithStorage overrides the storage backend and path when the values are non-empty
func WithStorage(storageType, storagePath string) Option {
	return func(c *Config) {
		if storageType != "" {
			c.StorageType = storageType
		}
		if storagePath != "" {
			c.StoragePath = storagePath
		}
	}
}

// Load reads configuration from environment variables
func Load(opts ...Option) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		StorageType:      getEnv("STORAGE_TYPE", "json"),
		StoragePath:      getEnv("STORAGE_PATH", "data/knowledge_graph"),
		ParseConcurrency: getEnvInt("PARSE_CONCURRENCY", 4),
		Neo4jURI:         getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:    getEnv("NEO4J_DATABASE", ""),
		LLMURL:           getEnv("LLM_URL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		ModelID:          getEnv("MODEL_ID", "gpt-4o-mini"),
	}

	for _, opt := range opts {
		opt(cfg)
	}
	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report env variable names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate checks that required configuration values are set. The storage
// type itself is checked by the storage factory so that an unknown backend
// surfaces as an unsupported-storage error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return errors.NewConfigValidationFailed(fe.Field(), reason)
	}
	return errors.NewConfigValidationFailed("config", err.Error())
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LLMEnabled reports whether an LLM endpoint is configured
func (c *Config) LLMEnabled() bool {
	return c.LLMURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
