package tool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"toolagent/internal/domain"
)

const (
	defaultTranslateAPI = "https://libretranslate.com"
	translateSource     = "LibreTranslate-compatible"
)

// TranslateTool translates text through a LibreTranslate-compatible server.
type TranslateTool struct {
	fetch   *Fetcher
	apiBase string
	apiKey  string
}

func NewTranslateTool(f *Fetcher, apiBase, apiKey string) *TranslateTool {
	if apiBase == "" {
		apiBase = defaultTranslateAPI
	}
	return &TranslateTool{fetch: f, apiBase: strings.TrimRight(apiBase, "/"), apiKey: apiKey}
}

func (t *TranslateTool) Name() string { return "translate" }
func (t *TranslateTool) Description() string {
	return "Translate text into a target language code such as ja, fr or tl"
}

func (t *TranslateTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"text":        {Type: "string", Description: "Text to translate"},
		"target_lang": {Type: "string", Description: "Target language code"},
	}, []string{"text", "target_lang"})
}

func (t *TranslateTool) Aliases() map[string]string {
	return map[string]string{"target": "target_lang", "lang": "target_lang", "language": "target_lang", "q": "text"}
}

// TranslationKey is the cache key for text translated into lang.
func TranslationKey(lang, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "translate:" + lang + ":" + hex.EncodeToString(sum[:])[:16]
}

func (t *TranslateTool) Execute(ctx context.Context, args map[string]any) (domain.ToolResult, error) {
	text := ArgsString(args, "text")
	lang := strings.ToLower(strings.TrimSpace(ArgsString(args, "target_lang")))
	if lang == "" {
		lang = "en"
	}
	head := map[string]any{"text": text, "target_lang": lang}

	key := TranslationKey(lang, text)
	if v, ok := t.fetch.cached(key); ok {
		return merge(head, v, map[string]any{"cached": true}), nil
	}

	body := map[string]string{"q": text, "source": "auto", "target": lang, "format": "text"}
	if t.apiKey != "" {
		body["api_key"] = t.apiKey
	}
	var resp struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := t.fetch.postJSON(ctx, t.apiBase+"/translate", nil, body, &resp); err != nil {
		return merge(head, fetchFailed(t.Name(), err)), nil
	}

	value := domain.ToolResult{"translated": resp.TranslatedText, "source": translateSource}
	t.fetch.store(key, value)
	return merge(head, value, map[string]any{"cached": false}), nil
}
