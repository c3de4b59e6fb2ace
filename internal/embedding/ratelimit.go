package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider with a token-bucket limit on embed calls.
// Tier-3 searches embed the whole lesson cache in a burst, and upstream
// embedding APIs meter by request; the limiter smooths those bursts out.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps inner so at most callsPerSecond Embed calls pass
// through. A non-positive rate returns inner unchanged.
func NewRateLimited(inner Provider, callsPerSecond float64) Provider {
	if callsPerSecond <= 0 {
		return inner
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

// Embed waits for limiter capacity, then delegates to the wrapped provider.
func (r *RateLimited) Embed(ctx context.Context, texts []string, purpose Purpose) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for embed rate limit: %w", err)
	}
	return r.inner.Embed(ctx, texts, purpose)
}

// Dimension returns the wrapped provider's dimension.
func (r *RateLimited) Dimension() int {
	return r.inner.Dimension()
}
