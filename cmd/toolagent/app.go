package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"toolagent/internal/agent"
	"toolagent/internal/cache"
	"toolagent/internal/config"
	"toolagent/internal/domain"
	"toolagent/internal/httpx"
	"toolagent/internal/metrics"
	"toolagent/internal/provider"
	"toolagent/internal/retry"
	"toolagent/internal/tool"
)

// app holds the long-lived collaborators shared by every run.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     *cache.Cache
	registry  *tool.Registry
	providers *provider.Factory
	metrics   *metrics.Collector
	prompt    *agent.PromptBuilder
	closers   []io.Closer
}

func newLogger(w io.Writer, general config.GeneralConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch general.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if general.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore picks the cache persistence backend. A nil store keeps the
// cache in memory only.
func openStore(cc config.CacheConfig) (cache.Store, io.Closer, error) {
	switch cc.Backend {
	case "memory":
		return nil, nil, nil
	case "file":
		return cache.NewFileStore(cc.Path), nil, nil
	case "sqlite":
		s, err := cache.NewSQLiteStore(cc.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cc.RedisAddr})
		s := cache.NewRedisStore(client, cc.RedisKey)
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector()
	}

	store, closer, err := openStore(cfg.Cache)
	if err != nil {
		logger.Warn("cache store unavailable, caching in memory only", "backend", cfg.Cache.Backend, "err", err)
		store, closer = nil, nil
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.cache = cache.New(cfg.Cache.TTL(), store,
		cache.WithLogger(logger.With("component", "cache")),
		cache.WithObserver(a.metrics.CacheLookup),
	)

	rc := cfg.Tools.Retry
	caller := retry.New(retry.Policy{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   time.Duration(rc.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(rc.MaxDelayMs) * time.Millisecond,
	},
		retry.WithLogger(logger.With("component", "retry")),
		retry.WithObserver(a.metrics.Retry),
	)

	fetcher := &tool.Fetcher{
		Client: httpx.SharedClient(cfg.Tools.HTTPTimeout()),
		Caller: caller,
		Cache:  a.cache,
		Logger: logger.With("component", "tools"),
	}

	a.registry = tool.NewRegistry(logger.With("component", "registry"),
		tool.WithFilter(tool.NewFilter(cfg.Tools.Enabled, cfg.Tools.Denied)),
		tool.WithDispatchObserver(a.metrics.ToolCall),
	)
	err = tool.RegisterBuiltins(a.registry, fetcher, tool.BuiltinOptions{
		WeatherAPI:      cfg.Tools.Weather.APIBase,
		DefaultCity:     cfg.Tools.Weather.DefaultCity,
		WikipediaAPI:    cfg.Tools.Wikipedia.APIBase,
		WikipediaAgent:  cfg.Tools.Wikipedia.UserAgent,
		TranslateAPI:    cfg.Tools.Translate.APIBase,
		TranslateAPIKey: cfg.Tools.Translate.APIKey,
		NewsAPI:         cfg.Tools.News.APIBase,
		NewsAPIKey:      cfg.Tools.News.APIKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	a.prompt = agent.NewPromptBuilder(a.registry, cfg.General.SystemPromptExtra)
	a.providers = provider.NewFactory(cfg, logger)
	return a, nil
}

// loop builds a loop bound to the named provider, or the configured
// default when name is empty.
func (a *app) loop(name string) (*agent.Loop, error) {
	gen, err := a.providers.Select(name)
	if err != nil {
		return nil, err
	}
	return a.loopWith(gen), nil
}

func (a *app) loopWith(gen domain.Generator) *agent.Loop {
	cfg := agent.Config{
		Generator: gen,
		Tools:     a.registry,
		Prompt:    a.prompt,
		Logger:    a.logger.With("component", "agent"),
		MaxSteps:  a.cfg.General.MaxSteps,
	}
	// A nil *Collector in the interface would not compare equal to nil.
	if a.metrics != nil {
		cfg.Metrics = a.metrics
	}
	return agent.NewLoop(cfg)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist yet.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
