package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Genkit is a Provider backed by a Genkit ai.Embedder.
// The concrete model behind it (Gemini, Ollama, OpenAI) is chosen at
// wiring time; this type only adds purpose routing and eager dimension
// validation on top.
type Genkit struct {
	embedder  ai.Embedder
	dimension int

	// Per-purpose embed options, passed through opaquely. Plugins that
	// support task types receive them here; nil means model default.
	docOpts   any
	queryOpts any
}

// GenkitOption configures a Genkit provider.
type GenkitOption func(*Genkit)

// WithDocumentOptions sets the plugin-specific options used for
// PurposeDocument requests.
func WithDocumentOptions(opts any) GenkitOption {
	return func(g *Genkit) {
		g.docOpts = opts
	}
}

// WithQueryOptions sets the plugin-specific options used for
// PurposeQuery requests.
func WithQueryOptions(opts any) GenkitOption {
	return func(g *Genkit) {
		g.queryOpts = opts
	}
}

// NewGenkit creates a Genkit-backed provider producing vectors of the
// given dimension. A nil embedder is allowed and yields
// ErrProviderUnavailable on every Embed call, which keeps wiring simple
// when no credential is configured.
func NewGenkit(embedder ai.Embedder, dimension int, opts ...GenkitOption) *Genkit {
	g := &Genkit{
		embedder:  embedder,
		dimension: dimension,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimension returns the configured vector dimension.
func (g *Genkit) Dimension() int {
	return g.dimension
}

// Embed embeds the given texts in one request, returning vectors in
// input order.
func (g *Genkit) Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: texts must be non-empty")
	}
	if g.embedder == nil {
		return nil, ErrProviderUnavailable
	}

	input := make([]*ai.Document, 0, len(texts))
	for _, text := range texts {
		input = append(input, ai.DocumentFromText(text, nil))
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   input,
		Options: g.optionsFor(purpose),
	})
	if err != nil {
		return nil, errors.Join(ErrUpstream, fmt.Errorf("embedding %d texts: %w", len(texts), err))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errors.Join(ErrUpstream,
			fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts)))
	}

	vectors := make([][]float32, 0, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != g.dimension {
			return nil, fmt.Errorf("%w: text %d produced %d dimensions, want %d",
				ErrDimensionMismatch, i, len(emb.Embedding), g.dimension)
		}
		vectors = append(vectors, emb.Embedding)
	}

	return vectors, nil
}

func (g *Genkit) optionsFor(purpose Purpose) any {
	if purpose == PurposeQuery {
		return g.queryOpts
	}
	return g.docOpts
}
