package tool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"toolagent/internal/domain"
	"toolagent/internal/httpx"
	"toolagent/internal/retry"
)

// Cache is the subset of the expiring cache the tools rely on.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Fetcher bundles what network-backed tools share: a pooled HTTP client, the
// retrying caller and the result cache.
type Fetcher struct {
	Client *http.Client
	Caller *retry.Caller
	Cache  Cache
	Logger *slog.Logger
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.Logger
}

func (f *Fetcher) client() *http.Client {
	if f.Client == nil {
		f.Client = httpx.SharedClient(0)
	}
	return f.Client
}

func (f *Fetcher) caller() *retry.Caller {
	if f.Caller == nil {
		f.Caller = retry.New(retry.DefaultPolicy(), retry.WithLogger(f.logger()))
	}
	return f.Caller
}

// cached returns the value stored under key, if any.
func (f *Fetcher) cached(key string) (domain.ToolResult, bool) {
	if f.Cache == nil {
		return nil, false
	}
	v, ok := f.Cache.Get(key)
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case domain.ToolResult:
		return m, true
	case map[string]any:
		// Values reloaded from a persisted snapshot decode as plain maps.
		return domain.ToolResult(m), true
	}
	return nil, false
}

func (f *Fetcher) store(key string, value domain.ToolResult) {
	if f.Cache != nil {
		f.Cache.Set(key, map[string]any(value))
	}
}

// getJSON performs a GET through the retrying caller. Client errors other
// than 429 are not retried.
func (f *Fetcher) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return f.caller().Do(ctx, func(ctx context.Context) error {
		return classify(httpx.GetJSON(ctx, f.client(), url, headers, out))
	})
}

func (f *Fetcher) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	return f.caller().Do(ctx, func(ctx context.Context) error {
		return classify(httpx.PostJSON(ctx, f.client(), url, headers, body, out))
	})
}

func classify(err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) && !se.Retryable() {
		return retry.Permanent(err)
	}
	return err
}

// fetchFailed turns a fetch the retrying caller gave up on into an error
// result, so the failure reaches the planner as an observation.
func fetchFailed(tool string, err error) domain.ToolResult {
	return domain.ErrorResult("%s failed: %v", tool, err)
}

// statusCode extracts the HTTP status from a fetch error, or 0.
func statusCode(err error) int {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// merge copies the fields of each map into a fresh result, later maps
// winning.
func merge(parts ...map[string]any) domain.ToolResult {
	out := domain.ToolResult{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}
