// Package embedding wraps a text-embedding engine behind a small
// provider interface.
//
// A Provider turns text into fixed-dimension float vectors. The dimension
// is validated eagerly on every call: a mismatched vector written to the
// index would corrupt similarity search silently, so it is rejected here
// rather than at the storage layer.
//
// The package imposes no retry policy. Embedding calls are safe to retry
// naively, but whether to do so is the caller's decision.
package embedding

import (
	"context"
	"errors"
)

// Purpose distinguishes document indexing from query embedding.
// Some models produce asymmetric embeddings and need to know which
// side of the search they are encoding.
type Purpose string

const (
	// PurposeDocument marks text that will be stored and searched against.
	PurposeDocument Purpose = "document"

	// PurposeQuery marks text used to search stored documents.
	PurposeQuery Purpose = "query"
)

var (
	// ErrProviderUnavailable indicates no embedder is configured.
	// Not retryable without a configuration change.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch indicates the model returned vectors whose
	// length differs from the configured dimension. Fatal configuration
	// drift; vectors are never truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUpstream indicates a transport or service failure.
	// Callers may retry.
	ErrUpstream = errors.New("embedding upstream error")
)

// Provider generates one vector per input text, in input order, each of
// length Dimension().
type Provider interface {
	// Embed embeds the given non-empty sequence of texts.
	Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error)

	// Dimension returns the fixed vector dimension this provider produces.
	Dimension() int
}
