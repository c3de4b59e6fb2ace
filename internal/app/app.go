// Package app wires the application together: configuration, tracing,
// the embedding provider, both storage backends, the lesson repository,
// and the reranker.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachai/coachai/internal/boost"
	"github.com/coachai/coachai/internal/config"
	"github.com/coachai/coachai/internal/embedding"
	"github.com/coachai/coachai/internal/knowledge"
	"github.com/coachai/coachai/internal/vecindex"
)

// App is the application container. Both storage backends are
// optional: with neither configured the repository runs memory-only and
// search degrades to the in-memory tier.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Provider embedding.Provider

	DBPool *pgxpool.Pool
	Index  *vecindex.Index
	Store  knowledge.LessonStore

	Repository *knowledge.Repository
	Booster    *boost.Booster

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.Logger.Debug("shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
