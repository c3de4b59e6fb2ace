package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Embedding provider validation
	validProviders := []string{ProviderGemini, ProviderOllama, ProviderOpenAI}
	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q, must be one of: %s",
			ErrInvalidProvider, c.Provider, strings.Join(validProviders, ", "))
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The dimension must match the vector(N) column in the embeddings
	// table. 4096 covers every model in current use.
	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidDimension, c.EmbeddingDimension)
	}

	// 2. Retrieval validation
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.EmbedRateLimit < 0 {
		return fmt.Errorf("%w: embed_rate_limit cannot be negative, got %g",
			ErrInvalidRateLimit, c.EmbedRateLimit)
	}

	// 3. Booster validation. Multiplier below 1.0 would demote the very
	// hits the booster exists to promote.
	if c.BoostMultiplier < 1.0 || c.BoostMultiplier > 10.0 {
		return fmt.Errorf("%w: boost_multiplier must be between 1.0 and 10.0, got %g",
			ErrInvalidBoost, c.BoostMultiplier)
	}

	if c.BoostMaxQueries < 0 || c.BoostMaxQueries > 10 {
		return fmt.Errorf("%w: boost_max_queries must be between 0 and 10, got %d",
			ErrInvalidBoost, c.BoostMaxQueries)
	}

	// 4. PostgreSQL validation, only when the direct tier is configured
	if c.HasPostgres() {
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: must be between 1 and 65535, got %d",
				ErrInvalidPostgresPort, c.PostgresPort)
		}

		if c.PostgresDBName == "" {
			return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
		}
	}

	// 5. Supabase validation, only when the remote tier is configured
	if c.HasSupabase() {
		if !strings.HasPrefix(c.SupabaseURL, "https://") && !strings.HasPrefix(c.SupabaseURL, "http://") {
			return fmt.Errorf("%w: supabase_url must be an http(s) URL, got %q",
				ErrInvalidSupabase, c.SupabaseURL)
		}
		if c.SupabaseAnonKey == "" && c.SupabaseServiceKey == "" {
			return fmt.Errorf("%w: at least one of supabase_anon_key or supabase_service_key is required",
				ErrInvalidSupabase)
		}
	}

	return nil
}
