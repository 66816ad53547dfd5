package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-1.5-flash"

// Gemini generates text with the Google Gemini API. The SDK client is
// created on first use because construction needs a context.
type Gemini struct {
	cfg GeminiConfig

	mu     sync.Mutex
	client *genai.Client
}

type GeminiConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: no API key configured")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	cfg.Logger = orDiscard(cfg.Logger)
	return &Gemini{cfg: cfg}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) sdkClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     g.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.cfg.HTTPClient,
	}
	if g.cfg.APIBase != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: withTrailingSlash(g.cfg.APIBase)}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := g.sdkClient(ctx)
	if err != nil {
		return "", err
	}

	temperature := float32(g.cfg.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if g.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}

	result, err := client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini: empty response")
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	g.cfg.Logger.Debug("gemini generate", "model", g.cfg.Model)
	return text, nil
}
