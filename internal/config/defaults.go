package config

// Provider kinds.
const (
	KindGemini = "gemini"
	KindOpenAI = "openai"
	KindOllama = "ollama"
	KindClaude = "claude"
)

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			LogFormat:       "text",
			MaxSteps:        6,
			DefaultProvider: "gemini",
		},
		Providers: map[string]ProviderConfig{
			"gemini": {
				Kind:        KindGemini,
				Enabled:     true,
				APIKey:      "${GEMINI_API_KEY}",
				Model:       "gemini-1.5-flash",
				Temperature: 0.2,
			},
			"openai": {
				Kind:        KindOpenAI,
				Enabled:     true,
				APIKey:      "${OPENAI_API_KEY}",
				Model:       "gpt-4o-mini",
				Temperature: 0.2,
			},
			"lmstudio": {
				Kind:        KindOpenAI,
				Enabled:     false,
				APIBase:     "${LMSTUDIO_BASE_URL:-http://localhost:1234/v1}",
				APIKey:      "lm-studio",
				Model:       "local-model",
				Temperature: 0.2,
			},
			"ollama": {
				Kind:        KindOllama,
				Enabled:     true,
				APIBase:     "${OLLAMA_HOST:-http://localhost:11434}",
				Model:       "llama3.1:8b",
				Temperature: 0.2,
			},
			"claude": {
				Kind:        KindClaude,
				Enabled:     true,
				APIKey:      "${ANTHROPIC_API_KEY}",
				Model:       "claude-3-5-haiku-latest",
				Temperature: 0.2,
				MaxTokens:   1024,
			},
		},
		Cache: CacheConfig{
			Backend:    "file",
			Path:       "~/.toolagent/cache.json",
			TTLSeconds: 600,
			RedisKey:   "toolagent:cache",
		},
		Tools: ToolsConfig{
			HTTPTimeoutSeconds: 20,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelayMs: 1000,
				MaxDelayMs:  8000,
			},
			Weather: WeatherConfig{
				DefaultCity: "manila",
			},
			Wikipedia: WikipediaConfig{
				UserAgent: "toolagent/0.1 (https://github.com/toolagent/toolagent)",
			},
			Translate: TranslateConfig{
				APIBase: "${TRANSLATE_BASE_URL:-https://libretranslate.com}",
				APIKey:  "${TRANSLATE_API_KEY}",
			},
			News: NewsConfig{
				APIKey: "${NEWSAPI_KEY}",
			},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}
