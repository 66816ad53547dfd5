package provider

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"toolagent/internal/config"
	"toolagent/internal/domain"
	"toolagent/internal/httpx"
)

// generateTimeout bounds one text-generation request.
const generateTimeout = 120 * time.Second

// Constructor creates a generator from a provider config entry.
type Constructor func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Generator, error)

// Factory creates and caches generators from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	client       *http.Client
	constructors map[string]Constructor
	cache        map[string]domain.Generator
	mu           sync.RWMutex
}

// NewFactory creates a generator factory with the built-in kinds registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       orDiscard(logger),
		client:       httpx.SharedClient(generateTimeout),
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Generator),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) the constructor for a provider kind.
func (f *Factory) RegisterConstructor(kind string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors[config.KindGemini] = func(_ string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Generator, error) {
		return NewGemini(GeminiConfig{
			APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature,
			HTTPClient: client, Logger: logger,
		})
	}
	f.constructors[config.KindOpenAI] = func(name string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Generator, error) {
		if pc.APIKey == "" && pc.APIBase == "" {
			return nil, fmt.Errorf("%s: no API key configured", name)
		}
		return NewOpenAI(OpenAIConfig{
			Name: name, APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature,
			HTTPClient: client, Logger: logger,
		}), nil
	}
	f.constructors[config.KindOllama] = func(_ string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Generator, error) {
		return NewOllama(OllamaConfig{
			APIBase: pc.APIBase, Model: pc.Model,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature,
			HTTPClient: client, Logger: logger,
		})
	}
	f.constructors[config.KindClaude] = func(_ string, pc config.ProviderConfig, client *http.Client, logger *slog.Logger) (domain.Generator, error) {
		return NewClaude(ClaudeConfig{
			APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature,
			HTTPClient: client, Logger: logger,
		})
	}
}

// Get returns the generator with the given name, or the default if name is
// empty. Created generators are cached so the same instance is reused.
func (f *Factory) Get(name string) (domain.Generator, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}
	ctor, found := f.constructors[pc.Kind]
	if !found {
		return nil, fmt.Errorf("provider %s: no constructor registered for kind %q", name, pc.Kind)
	}

	g, err := ctor(name, pc, f.client, f.logger.With("provider", name))
	if err != nil {
		return nil, err
	}
	g = NewRateLimited(g, pc.RateLimitPerMinute)

	f.cache[name] = g
	return g, nil
}

// Select returns the generator for an explicit name, or the configured
// default: the failover chain when one is set, else the default provider.
func (f *Factory) Select(name string) (domain.Generator, error) {
	if name != "" || len(f.cfg.General.FailoverChain) == 0 {
		return f.Get(name)
	}

	var chain []domain.Generator
	for _, n := range f.cfg.General.FailoverChain {
		g, err := f.Get(n)
		if err != nil {
			f.logger.Warn("failover: skipping provider", "provider", n, "error", err)
			continue
		}
		chain = append(chain, g)
	}
	switch len(chain) {
	case 0:
		return nil, fmt.Errorf("no usable provider in failover chain %s", strings.Join(f.cfg.General.FailoverChain, ","))
	case 1:
		return chain[0], nil
	}
	return NewFailover(chain, f.logger), nil
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func withTrailingSlash(base string) string {
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}
