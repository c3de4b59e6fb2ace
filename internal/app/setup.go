package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/coachai/coachai/db"
	"github.com/coachai/coachai/internal/boost"
	"github.com/coachai/coachai/internal/config"
	"github.com/coachai/coachai/internal/embedding"
	"github.com/coachai/coachai/internal/knowledge"
	"github.com/coachai/coachai/internal/supabase"
	"github.com/coachai/coachai/internal/vecindex"
)

// Setup creates and initializes the application. Returns an App with
// embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	if cfg.HasPostgres() {
		pool, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.DBPool = pool
		a.Index = vecindex.New(pool, logger)
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder
	a.Provider = embedding.NewRateLimited(
		embedding.NewGenkit(embedder, cfg.EmbeddingDimension),
		cfg.EmbedRateLimit,
	)

	if cfg.HasSupabase() {
		store, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, logger)
		if err != nil {
			return nil, fmt.Errorf("creating supabase client: %w", err)
		}
		a.Store = store
	}

	var index knowledge.VectorIndex
	if a.Index != nil {
		index = a.Index
	}
	a.Repository = knowledge.NewRepository(a.Provider, index, a.Store, logger)

	// Warm the lesson cache. A failure here only delays the in-memory
	// tier until the first search retries the load.
	if err := a.Repository.Load(ctx); err != nil {
		logger.Warn("initial lesson load failed", "error", err)
	}

	booster, err := boost.New(a.Repository, a.Repository, boost.Config{
		Multiplier: cfg.BoostMultiplier,
		MaxQueries: cfg.BoostMaxQueries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating booster: %w", err)
	}
	a.Booster = booster

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up Datadog tracing before Genkit
// initialization so the TracerProvider is ready when plugins register.
//
// Traces export to a local Datadog Agent over OTLP HTTP; the Agent
// handles authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	dd := cfg.Datadog
	if !dd.Enabled {
		return func() {}
	}

	agentHost := dd.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly
	// once during startup before any goroutines are spawned.
	if dd.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", dd.ServiceName)
	}
	if dd.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+dd.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("creating datadog exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("datadog tracing enabled",
		"agent", agentHost,
		"service", dd.ServiceName,
		"environment", dd.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection
// pool for the vector index.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration (no auto-discovery).
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Debug("initialized genkit with ollama provider",
			"embedder", cfg.EmbedderModel, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Debug("initialized genkit with openai provider", "embedder", cfg.EmbedderModel)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Debug("initialized genkit with gemini provider", "embedder", cfg.EmbedderModel)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Each provider registers differently: ollama keys by server
// address, openai auto-registers in Init, gemini resolves by model.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
