package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"toolagent/internal/domain"
)

// Failover tries several generators in order, falling back to the next one
// when the current fails. Cancellation stops the chain immediately.
type Failover struct {
	generators []domain.Generator
	logger     *slog.Logger
}

// NewFailover creates a failover chain from the given generators.
// At least one generator is required.
func NewFailover(generators []domain.Generator, logger *slog.Logger) *Failover {
	return &Failover{
		generators: generators,
		logger:     orDiscard(logger),
	}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.generators))
	for i, g := range f.generators {
		names[i] = g.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Generate returns the first successful reply.
func (f *Failover) Generate(ctx context.Context, prompt string) (string, error) {
	if len(f.generators) == 0 {
		return "", errors.New("failover chain is empty")
	}
	var lastErr error
	for i, g := range f.generators {
		reply, err := g.Generate(ctx, prompt)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback provider",
					"provider", g.Name(),
					"attempt", i+1,
				)
			}
			return reply, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		f.logger.Warn("failover: provider failed, trying next",
			"provider", g.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	return "", fmt.Errorf("all providers in failover chain failed: %w", lastErr)
}
