// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (DATABASE_URL and DATATALK_* overrides)
//  2. Config file (~/.datatalk/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive values (passwords, API keys) are never logged; validation is
// fail-fast with sentinel errors usable through errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the model provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the generative model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidContextBudget indicates the augmentation budget is out of range.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidCacheCapacity indicates the artifact cache capacity is out of range.
	ErrInvalidCacheCapacity = errors.New("invalid artifact cache capacity")
)

const (
	// DefaultEmbedderModel truncates to 768 dimensions to match the
	// pgvector schema; see corpus.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default generative model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultContextBudget is the augmentation block size budget in bytes.
	DefaultContextBudget = 8192

	// DefaultHistoryWindow is the number of recent messages fed to the model.
	DefaultHistoryWindow = 10

	// DefaultCacheCapacity bounds the artifact cache entry count.
	DefaultCacheCapacity = 128
)

// Config stores application configuration.
type Config struct {
	// Model provider configuration
	ModelName     string  `mapstructure:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	GeminiAPIKey  string  `mapstructure:"gemini_api_key"` // SENSITIVE: never log

	// Retrieval and conversation configuration
	ContextBudget int   `mapstructure:"context_budget"`
	HistoryWindow int32 `mapstructure:"history_window"`
	CacheCapacity int   `mapstructure:"cache_capacity"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never log
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads the configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".datatalk")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has the highest priority for PostgreSQL settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 2048)

	v.SetDefault("context_budget", DefaultContextBudget)
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("cache_capacity", DefaultCacheCapacity)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "datatalk")
	v.SetDefault("postgres_password", "datatalk_dev_password")
	v.SetDefault("postgres_db_name", "datatalk")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a bind error here is a bug, not a runtime condition.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("model_name", "DATATALK_MODEL_NAME")
	mustBind("embedder_model", "DATATALK_EMBEDDER_MODEL")
	mustBind("context_budget", "DATATALK_CONTEXT_BUDGET")
	mustBind("history_window", "DATATALK_HISTORY_WINDOW")
	mustBind("cache_capacity", "DATATALK_CACHE_CAPACITY")
	mustBind("postgres_password", "DATATALK_POSTGRES_PASSWORD")
}
