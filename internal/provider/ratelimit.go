package provider

import (
	"context"

	"golang.org/x/time/rate"

	"toolagent/internal/domain"
)

const maxBurst = 10

// RateLimited throttles calls to a generator with a token bucket.
type RateLimited struct {
	inner   domain.Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of up to
// maxBurst. A non-positive perMinute returns inner unchanged.
func NewRateLimited(inner domain.Generator, perMinute int) domain.Generator {
	if perMinute <= 0 {
		return inner
	}
	burst := perMinute
	if burst > maxBurst {
		burst = maxBurst
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt)
}
