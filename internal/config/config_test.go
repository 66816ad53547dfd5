package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxSteps_Boundary(t *testing.T) {
	cfg := Defaults()
	for _, n := range []int{0, 51} {
		cfg.General.MaxSteps = n
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for maxSteps=%d", n)
		}
	}
	for _, n := range []int{1, 50} {
		cfg.General.MaxSteps = n
		if err := Validate(cfg); err != nil {
			t.Fatalf("maxSteps=%d should be valid: %v", n, err)
		}
	}
}

func TestValidate_LogSettings(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = Defaults()
	cfg.General.LogFormat = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestValidate_UnknownDefaultProvider(t *testing.T) {
	cfg := Defaults()
	cfg.General.DefaultProvider = "nope"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown default provider")
	}
}

func TestValidate_FailoverChainReferences(t *testing.T) {
	cfg := Defaults()
	cfg.General.FailoverChain = []string{"gemini", "missing"}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected failover chain error, got %v", err)
	}
}

func TestValidate_ProviderKind(t *testing.T) {
	cfg := Defaults()
	pc := cfg.Providers["gemini"]
	pc.Kind = "bard"
	cfg.Providers["gemini"] = pc
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown provider kind")
	}
}

func TestValidate_CacheBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Backend = "redis"
	if err := Validate(cfg); err == nil {
		t.Fatal("redis backend without an address should be invalid")
	}
	cfg.Cache.RedisAddr = "localhost:6379"
	if err := Validate(cfg); err != nil {
		t.Fatalf("redis backend with address should be valid: %v", err)
	}
	cfg.Cache.Backend = "memcached"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidate_RetryDelays(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Retry.BaseDelayMs = 10000
	if err := Validate(cfg); err == nil {
		t.Fatal("base delay above max delay should be invalid")
	}
}

func TestValidate_MetricsPath(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for relative metrics path")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Defaults()
	original.General.DefaultProvider = "ollama"
	original.General.MaxSteps = 4
	original.Cache.Path = filepath.Join(dir, "cache.json")

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.General.DefaultProvider != "ollama" || loaded.General.MaxSteps != 4 {
		t.Fatalf("unexpected general section: %+v", loaded.General)
	}
	if loaded.Providers["claude"].Model != "claude-3-5-haiku-latest" {
		t.Fatalf("providers not preserved: %+v", loaded.Providers)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
general:
  maxSteps: 3
cache:
  ttlSeconds: 60
tools:
  weather:
    defaultCity: ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.MaxSteps != 3 || cfg.Cache.TTL() != time.Minute {
		t.Fatalf("overrides not applied: %+v %+v", cfg.General, cfg.Cache)
	}
	if cfg.General.DefaultProvider != "gemini" || cfg.Tools.Retry.MaxAttempts != 3 {
		t.Fatal("defaults should survive a partial file")
	}
	if cfg.Tools.Weather.DefaultCity != "" {
		t.Fatal("explicit empty default city should be kept")
	}
	if _, ok := cfg.Providers["ollama"]; !ok {
		t.Fatal("default providers should survive a partial file")
	}
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"general":{"maxSteps":5}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.General.MaxSteps != 5 {
		t.Fatalf("expected 5, got %d", cfg.General.MaxSteps)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.General.MaxSteps != 6 {
		t.Fatalf("expected defaults, got %+v", cfg.General)
	}
	if strings.HasPrefix(cfg.Cache.Path, "~") {
		t.Fatalf("cache path should be expanded, got %q", cfg.Cache.Path)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("general: [unclosed"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("general:\n  maxSteps: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for maxSteps=0")
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_TOOLAGENT_KEY", "sk-test-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
providers:
  openai:
    kind: openai
    enabled: true
    apiKey: ${TEST_TOOLAGENT_KEY}
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-test-123" {
		t.Fatalf("expected substituted key, got %q", cfg.Providers["openai"].APIKey)
	}
}

func TestLoad_UnresolvedSecretIsEmpty(t *testing.T) {
	os.Unsetenv("GEMINI_API_KEY")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers["gemini"].APIKey != "" {
		t.Fatalf("unset secret should resolve to empty, got %q", cfg.Providers["gemini"].APIKey)
	}
}

func TestLoad_SecretDefaultValue(t *testing.T) {
	os.Unsetenv("OLLAMA_HOST")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers["ollama"].APIBase != "http://localhost:11434" {
		t.Fatalf("unexpected ollama base %q", cfg.Providers["ollama"].APIBase)
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc123")
	result := ExpandEnvVars(`apiKey: ${TEST_API_KEY}`)
	if result != "apiKey: sk-abc123" {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`port: ${NONEXISTENT_VAR_12345:-8080}`)
	if result != "port: 8080" {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("MY_PORT", "9090")
	result := ExpandEnvVars(`port: ${MY_PORT:-8080}`)
	if result != "port: 9090" {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`${TOTALLY_UNSET_VAR_XYZ}`)
	if result != `${TOTALLY_UNSET_VAR_XYZ}` {
		t.Fatalf("unexpected %q", result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	result := ExpandEnvVars(`price: $100`)
	if result != "price: $100" {
		t.Fatalf("unexpected %q", result)
	}
}

// --- accessors ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "cache.ttlSeconds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 600.0 {
		t.Fatalf("expected 600, got %v", v)
	}
	v, err = GetByPath(cfg, "providers.gemini.model")
	if err != nil || v != "gemini-1.5-flash" {
		t.Fatalf("unexpected %v, %v", v, err)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	if _, err := GetByPath(Defaults(), "general.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "general.maxSteps", "4"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if err := SetByPath(cfg, "tools.weather.defaultCity", "tokyo"); err != nil {
		t.Fatalf("set string: %v", err)
	}
	if cfg.General.MaxSteps != 4 || !cfg.Metrics.Enabled || cfg.Tools.Weather.DefaultCity != "tokyo" {
		t.Fatalf("values not applied: %+v %+v %+v", cfg.General, cfg.Metrics, cfg.Tools.Weather)
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	pc := cfg.Providers["openai"]
	pc.APIKey = "sk-1234567890abcdef"
	cfg.Providers["openai"] = pc
	cfg.Tools.News.APIKey = "abc"
	cfg.Server.APIKey = "server-secret-token"

	s := Sanitize(cfg)
	if s.Providers["openai"].APIKey != "sk-1****cdef" {
		t.Fatalf("unexpected mask %q", s.Providers["openai"].APIKey)
	}
	if s.Tools.News.APIKey != "***" {
		t.Fatalf("short secret should be fully masked, got %q", s.Tools.News.APIKey)
	}
	if s.Server.APIKey == cfg.Server.APIKey {
		t.Fatal("server key should be masked")
	}
	if cfg.Providers["openai"].APIKey != "sk-1234567890abcdef" {
		t.Fatal("Sanitize must not modify the original")
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, p := range []string{"general.maxSteps", "cache.backend", "tools.retry.maxAttempts", "server.addr"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
}

func TestLoadRaw_KeepsPlaceholders(t *testing.T) {
	t.Setenv("TEST_RAW_KEY", "resolved")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "tools:\n  news:\n    apiKey: ${TEST_RAW_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw.Tools.News.APIKey != "${TEST_RAW_KEY}" {
		t.Fatalf("placeholder should survive, got %q", raw.Tools.News.APIKey)
	}

	if err := SetByPath(raw, "general.maxSteps", "8"); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, raw); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.General.MaxSteps != 8 || loaded.Tools.News.APIKey != "resolved" {
		t.Fatalf("unexpected reloaded config: %+v %+v", loaded.General, loaded.Tools.News)
	}
}
