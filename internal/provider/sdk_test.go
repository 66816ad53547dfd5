package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI answers every request with body and records what it saw.
type fakeAPI struct {
	mu    sync.Mutex
	paths []string
	body  string
}

func newFakeAPI(t *testing.T, body string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.paths = append(api.paths, r.URL.Path+" "+string(seen))
		api.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, api.body)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) saw(substr string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.paths {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func TestOpenAI_Generate(t *testing.T) {
	api, srv := newFakeAPI(t, `{"id":"c1","object":"chat.completion","created":0,"model":"local-model",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"final\":true,\"answer\":\"hi\"}"}}]}`)

	g := NewOpenAI(OpenAIConfig{Name: "lmstudio", APIBase: srv.URL, Model: "local-model", Logger: testLogger()})
	reply, err := g.Generate(context.Background(), "plan this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != `{"final":true,"answer":"hi"}` {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !api.saw("chat/completions") || !api.saw("plan this") {
		t.Fatalf("prompt not sent to chat completions: %v", api.paths)
	}
	if g.Name() != "lmstudio" {
		t.Fatalf("unexpected name %q", g.Name())
	}
}

func TestOllama_Generate(t *testing.T) {
	api, srv := newFakeAPI(t, `{"model":"llama3.1:8b","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"hello"},"done":true}`)

	g, err := NewOllama(OllamaConfig{APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := g.Generate(context.Background(), "plan this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !api.saw("/api/chat") {
		t.Fatalf("expected /api/chat, saw %v", api.paths)
	}
}

func TestClaude_Generate(t *testing.T) {
	api, srv := newFakeAPI(t, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
		"content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`)

	g, err := NewClaude(ClaudeConfig{APIKey: "test", APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := g.Generate(context.Background(), "plan this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !api.saw("/v1/messages") {
		t.Fatalf("expected /v1/messages, saw %v", api.paths)
	}
}

func TestGemini_Generate(t *testing.T) {
	api, srv := newFakeAPI(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]},"finishReason":"STOP"}]}`)

	g, err := NewGemini(GeminiConfig{APIKey: "test", APIBase: srv.URL, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := g.Generate(context.Background(), "plan this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !api.saw("gemini-1.5-flash:generateContent") {
		t.Fatalf("expected generateContent call, saw %v", api.paths)
	}
}

func TestNewClaude_RequiresKey(t *testing.T) {
	if _, err := NewClaude(ClaudeConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(GeminiConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
