package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openaiDefaultModel = "gpt-4o-mini"

// OpenAI generates text with any OpenAI-compatible chat completions
// endpoint. Pointing APIBase at LM Studio or a similar local server works
// without an API key.
type OpenAI struct {
	client      openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

type OpenAIConfig struct {
	// Name is reported by Name(); defaults to "openai".
	Name        string
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openaiDefaultModel
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	// A local server accepts any bearer token; the SDK would otherwise fall
	// back to OPENAI_API_KEY from the environment.
	key := cfg.APIKey
	if key == "" && cfg.APIBase != "" {
		key = "local"
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(cfg.APIBase)))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		name:        cfg.Name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      orDiscard(cfg.Logger),
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if o.temperature > 0 {
		params.Temperature = openai.Float(o.temperature)
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", o.name, errors.New("empty response"))
	}
	o.logger.Debug("openai generate", "provider", o.name, "model", o.model, "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
