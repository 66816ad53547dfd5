package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const (
	ollamaDefaultBase  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// Ollama generates text with a local (or remote) Ollama server.
type Ollama struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

type OllamaConfig struct {
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = ollamaDefaultBase
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	base, err := url.Parse(cfg.APIBase)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid api base %q: %w", cfg.APIBase, err)
	}
	return &Ollama{
		client:      api.NewClient(base, cfg.HTTPClient),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      orDiscard(cfg.Logger),
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	options := map[string]any{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  options,
	}

	var resp api.ChatResponse
	err := o.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	o.logger.Debug("ollama generate", "model", o.model, "done_reason", resp.DoneReason)
	return resp.Message.Content, nil
}
