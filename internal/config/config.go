// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.coachai/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: provider selection, embedder model, vector dimension
//   - Retrieval: top_k, embed call rate limit
//   - Boost: reranker multiplier and query fan-out
//   - Storage: PostgreSQL vector index and Supabase remote tables
//     (see storage.go)
//
// Both storage backends are optional. With neither configured the
// repository runs entirely from its in-memory lesson cache.
//
// Security: sensitive values (passwords, service keys) are masked in
// MarshalJSON. Validation uses sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
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

	// ErrInvalidProvider indicates the embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTopK indicates the retrieval top_k value is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidRateLimit indicates the embed rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid embed rate limit")

	// ErrInvalidBoost indicates a booster parameter is out of range.
	ErrInvalidBoost = errors.New("invalid boost configuration")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidSupabase indicates the Supabase settings are incomplete.
	ErrInvalidSupabase = errors.New("invalid Supabase configuration")
)

// Embedding provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to smaller output
	// dimensionality (Matryoshka Representation Learning), which lets it
	// match the 384-dimension pgvector schema.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingDimension matches the vector(384) column in the
	// embeddings table. Changing one without the other corrupts the index,
	// so both read from the same config key.
	DefaultEmbeddingDimension = 384

	// DefaultTopK is the default number of lessons retrieved per query.
	DefaultTopK = 3

	// DefaultBoostMultiplier is the similarity multiplier applied to
	// domain-matching hits during reranking. A tuning choice, not a
	// correctness requirement; override via boost_multiplier.
	DefaultBoostMultiplier = 1.3

	// DefaultBoostMaxQueries caps the widened searches issued per rerank.
	DefaultBoostMaxQueries = 3
)

// DatadogConfig holds optional tracing configuration.
// Traces export over OTLP HTTP to a local agent which forwards them.
type DatadogConfig struct {
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, keys), update MarshalJSON.
type Config struct {
	// Embedding provider configuration
	Provider           string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	OllamaHost         string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval configuration
	TopK           int     `mapstructure:"top_k" json:"top_k"`
	EmbedRateLimit float64 `mapstructure:"embed_rate_limit" json:"embed_rate_limit"` // embed calls/sec, 0 = unlimited

	// Booster configuration
	BoostMultiplier float64 `mapstructure:"boost_multiplier" json:"boost_multiplier"`
	BoostMaxQueries int     `mapstructure:"boost_max_queries" json:"boost_max_queries"`

	// PostgreSQL vector index (optional; empty host disables the direct tier)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Supabase remote tables/RPC (optional; empty URL disables the remote tier)
	SupabaseURL        string `mapstructure:"supabase_url" json:"supabase_url"`
	SupabaseAnonKey    string `mapstructure:"supabase_anon_key" json:"supabase_anon_key"`       // SENSITIVE: masked in MarshalJSON
	SupabaseServiceKey string `mapstructure:"supabase_service_key" json:"supabase_service_key"` // SENSITIVE: masked in MarshalJSON

	// Observability configuration
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".coachai")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Embedding defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("embed_rate_limit", 0.0)

	// Booster defaults
	viper.SetDefault("boost_multiplier", DefaultBoostMultiplier)
	viper.SetDefault("boost_max_queries", DefaultBoostMaxQueries)

	// PostgreSQL defaults: host intentionally empty. The direct vector
	// tier only activates when configured.
	viper.SetDefault("postgres_host", "")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "coachai")
	viper.SetDefault("postgres_password", "")
	viper.SetDefault("postgres_db_name", "coachai")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Supabase defaults: empty disables the remote tier
	viper.SetDefault("supabase_url", "")
	viper.SetDefault("supabase_anon_key", "")
	viper.SetDefault("supabase_service_key", "")

	// Datadog defaults
	viper.SetDefault("datadog.enabled", false)
	viper.SetDefault("datadog.agent_host", "localhost:4318")
	viper.SetDefault("datadog.environment", "dev")
	viper.SetDefault("datadog.service_name", "coachai")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit
// plugins, not via Viper.
func bindEnvVariables() {
	// Hardcoded keys can't fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "COACHAI_PROVIDER")
	mustBind("embedder_model", "COACHAI_EMBEDDER_MODEL")
	mustBind("embedding_dimension", "PGVECTOR_DIMENSION")
	mustBind("ollama_host", "COACHAI_OLLAMA_HOST")

	mustBind("top_k", "TOP_K")

	mustBind("supabase_url", "SUPABASE_URL")
	mustBind("supabase_anon_key", "SUPABASE_ANON_KEY")
	mustBind("supabase_service_key", "SUPABASE_SERVICE_ROLE_KEY")

	mustBind("datadog.agent_host", "DD_AGENT_HOST")
}

// HasPostgres reports whether the direct vector-index backend is configured.
func (c *Config) HasPostgres() bool {
	return c.PostgresHost != ""
}

// HasSupabase reports whether the remote table/RPC backend is configured.
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != ""
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so config dumps are safe to log.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // Avoid recursive MarshalJSON calls

	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	if masked.SupabaseAnonKey != "" {
		masked.SupabaseAnonKey = maskedValue
	}
	if masked.SupabaseServiceKey != "" {
		masked.SupabaseServiceKey = maskedValue
	}

	return json.Marshal(masked)
}
