// Package config loads and validates the toolagent configuration file.
// The file is YAML; JSON files parse too.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for toolagent.
type Config struct {
	General   GeneralConfig             `yaml:"general" json:"general"`
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`
	Cache     CacheConfig               `yaml:"cache" json:"cache"`
	Tools     ToolsConfig               `yaml:"tools" json:"tools"`
	Server    ServerConfig              `yaml:"server" json:"server"`
	Metrics   MetricsConfig             `yaml:"metrics" json:"metrics"`
}

type GeneralConfig struct {
	LogLevel          string   `yaml:"logLevel" json:"logLevel"`   // debug | info | warn | error
	LogFormat         string   `yaml:"logFormat" json:"logFormat"` // text | json
	MaxSteps          int      `yaml:"maxSteps" json:"maxSteps"`
	DefaultProvider   string   `yaml:"defaultProvider" json:"defaultProvider"`
	FailoverChain     []string `yaml:"failoverChain,omitempty" json:"failoverChain,omitempty"`
	SystemPromptExtra string   `yaml:"systemPromptExtra,omitempty" json:"systemPromptExtra,omitempty"`
}

// ProviderConfig describes one text-generation backend. Kind selects the
// client; the map key is only a name, so several entries may share a kind
// (e.g. "openai" and "lmstudio" are both kind openai).
type ProviderConfig struct {
	Kind               string  `yaml:"kind" json:"kind"` // gemini | openai | ollama | claude
	Enabled            bool    `yaml:"enabled" json:"enabled"`
	APIBase            string  `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	APIKey             string  `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Model              string  `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature        float64 `yaml:"temperature" json:"temperature"`
	MaxTokens          int     `yaml:"maxTokens,omitempty" json:"maxTokens,omitempty"`
	RateLimitPerMinute int     `yaml:"rateLimitPerMinute,omitempty" json:"rateLimitPerMinute,omitempty"`
}

type CacheConfig struct {
	Backend    string `yaml:"backend" json:"backend"` // file | sqlite | redis | memory
	Path       string `yaml:"path" json:"path"`
	TTLSeconds int    `yaml:"ttlSeconds" json:"ttlSeconds"`
	RedisAddr  string `yaml:"redisAddr,omitempty" json:"redisAddr,omitempty"`
	RedisKey   string `yaml:"redisKey,omitempty" json:"redisKey,omitempty"`
}

// TTL returns the cache time-to-live.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

type ToolsConfig struct {
	Enabled            []string        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Denied             []string        `yaml:"denied,omitempty" json:"denied,omitempty"`
	HTTPTimeoutSeconds int             `yaml:"httpTimeoutSeconds" json:"httpTimeoutSeconds"`
	Retry              RetryConfig     `yaml:"retry" json:"retry"`
	Weather            WeatherConfig   `yaml:"weather" json:"weather"`
	Wikipedia          WikipediaConfig `yaml:"wikipedia" json:"wikipedia"`
	Translate          TranslateConfig `yaml:"translate" json:"translate"`
	News               NewsConfig      `yaml:"news" json:"news"`
}

// HTTPTimeout returns the per-request timeout for tool HTTP calls.
func (t ToolsConfig) HTTPTimeout() time.Duration {
	return time.Duration(t.HTTPTimeoutSeconds) * time.Second
}

type RetryConfig struct {
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts"`
	BaseDelayMs int `yaml:"baseDelayMs" json:"baseDelayMs"`
	MaxDelayMs  int `yaml:"maxDelayMs" json:"maxDelayMs"`
}

type WeatherConfig struct {
	// DefaultCity is used when a requested city matches nothing in the
	// gazetteer. Empty makes such requests fail with "city not recognized".
	DefaultCity string `yaml:"defaultCity" json:"defaultCity"`
	APIBase     string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
}

type WikipediaConfig struct {
	APIBase   string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	UserAgent string `yaml:"userAgent,omitempty" json:"userAgent,omitempty"`
}

type TranslateConfig struct {
	APIBase string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
}

type NewsConfig struct {
	APIBase string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	APIKey string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// DefaultConfigDir returns the default config directory (~/.toolagent).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolagent"
	}
	return filepath.Join(home, ".toolagent")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	finish(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadRaw parses path without expanding ${VAR} references, so editing and
// saving a file keeps its placeholders instead of writing secrets back.
func LoadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Defaults()
		finish(cfg)
		return cfg, nil
	}
	return cfg, err
}

// finish resolves paths and secrets that the defaults carry as templates.
func finish(cfg *Config) {
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)
	for name, pc := range cfg.Providers {
		pc.APIKey = resolveSecret(pc.APIKey)
		pc.APIBase = resolveSecret(pc.APIBase)
		cfg.Providers[name] = pc
	}
	cfg.Tools.Translate.APIBase = resolveSecret(cfg.Tools.Translate.APIBase)
	cfg.Tools.Translate.APIKey = resolveSecret(cfg.Tools.Translate.APIKey)
	cfg.Tools.News.APIKey = resolveSecret(cfg.Tools.News.APIKey)
	cfg.Server.APIKey = resolveSecret(cfg.Server.APIKey)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// resolveSecret expands s and drops any placeholder left unresolved, so an
// unset variable reads as "not configured" rather than as a literal key.
func resolveSecret(s string) string {
	s = ExpandEnvVars(s)
	if envVarPattern.MatchString(s) {
		return ""
	}
	return s
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxSteps < 1 || cfg.General.MaxSteps > 50 {
		errs = append(errs, "general.maxSteps must be between 1 and 50")
	}
	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", cfg.General.DefaultProvider))
	}

	// Validate failover chain references exist in providers.
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}

	for name, pc := range cfg.Providers {
		switch pc.Kind {
		case KindGemini, KindOpenAI, KindOllama, KindClaude:
		default:
			errs = append(errs, fmt.Sprintf("providers.%s: kind must be one of: gemini, openai, ollama, claude", name))
		}
		if pc.Temperature < 0 || pc.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("providers.%s: temperature must be between 0 and 2", name))
		}
		if pc.RateLimitPerMinute < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s: rateLimitPerMinute must be >= 0", name))
		}
	}

	switch cfg.Cache.Backend {
	case "file", "sqlite":
		if cfg.Cache.Path == "" {
			errs = append(errs, "cache.path is required for the file and sqlite backends")
		}
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redisAddr is required for the redis backend")
		}
	case "memory":
	default:
		errs = append(errs, "cache.backend must be one of: file, sqlite, redis, memory")
	}
	if cfg.Cache.TTLSeconds < 1 {
		errs = append(errs, "cache.ttlSeconds must be >= 1")
	}

	if cfg.Tools.HTTPTimeoutSeconds < 1 {
		errs = append(errs, "tools.httpTimeoutSeconds must be >= 1")
	}
	r := cfg.Tools.Retry
	if r.MaxAttempts < 1 || r.MaxAttempts > 10 {
		errs = append(errs, "tools.retry.maxAttempts must be between 1 and 10")
	}
	if r.BaseDelayMs < 0 || r.MaxDelayMs < r.BaseDelayMs {
		errs = append(errs, "tools.retry delays must satisfy 0 <= baseDelayMs <= maxDelayMs")
	}

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
