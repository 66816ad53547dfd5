package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"toolagent/internal/agent"
	"toolagent/internal/metrics"
	"toolagent/internal/tool"
)

// cannedGenerator cycles through replies.
type cannedGenerator struct {
	mu      sync.Mutex
	replies []string
	n       int
	err     error
}

func (g *cannedGenerator) Name() string { return "canned" }

func (g *cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	r := g.replies[g.n%len(g.replies)]
	g.n++
	return r, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, gen *cannedGenerator, apiKey string) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector()
	reg := tool.NewRegistry(testLogger(), tool.WithDispatchObserver(collector.ToolCall))
	if err := reg.Register(tool.NewCalculatorTool()); err != nil {
		t.Fatal(err)
	}

	s := New(Config{
		APIKey: apiKey,
		Tools:  reg,
		NewRunner: func(provider string) (Runner, error) {
			if provider != "" && provider != "canned" {
				return nil, errors.New("unknown provider: " + provider)
			}
			return agent.NewLoop(agent.Config{
				Generator: gen,
				Tools:     reg,
				Logger:    testLogger(),
				Metrics:   collector,
			}), nil
		},
		Metrics: collector.Handler(),
		Logger:  testLogger(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, collector
}

func postAsk(t *testing.T, url, body, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, _ := http.NewRequest("POST", url+"/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAsk_RunsLoop(t *testing.T) {
	gen := &cannedGenerator{replies: []string{
		`{"tool":"calculator","args":{"expression":"6*7"}}`,
		`{"final":true,"answer":"It is 42."}`,
	}}
	srv, _ := newTestServer(t, gen, "")

	resp, out := postAsk(t, srv.URL, `{"query":"what is 6*7?"}`, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, out)
	}
	if out["answer"] != "It is 42." || out["state"] != "done" {
		t.Fatalf("unexpected result: %v", out)
	}
	if out["runId"] == "" || out["runId"] == nil {
		t.Fatal("expected a run id")
	}
	trace, _ := out["trace"].([]any)
	if len(trace) != 5 {
		t.Fatalf("expected 5 trace entries, got %d", len(trace))
	}
}

func TestAsk_MaxStepsOverride(t *testing.T) {
	gen := &cannedGenerator{replies: []string{`{"tool":"calculator","args":{"expression":"1+1"}}`}}
	srv, _ := newTestServer(t, gen, "")

	_, out := postAsk(t, srv.URL, `{"query":"loop forever","maxSteps":2}`, "")
	if out["state"] != "step_limit_reached" {
		t.Fatalf("expected step limit, got %v", out)
	}
	if out["answer"] != agent.StepLimitMessage {
		t.Fatalf("unexpected answer %v", out["answer"])
	}
	if out["steps"].(float64) != 2 {
		t.Fatalf("expected 2 steps, got %v", out["steps"])
	}
}

func TestAsk_BadRequests(t *testing.T) {
	gen := &cannedGenerator{replies: []string{`{"final":true,"answer":"x"}`}}
	srv, _ := newTestServer(t, gen, "")

	cases := map[string]string{
		"not json":                      "invalid JSON",
		`{"query":"   "}`:               "query is required",
		`{"query":"q","maxSteps":99}`:   "maxSteps must be between 0 and 50 (0 = default)",
		`{"query":"q","maxSteps":-1}`:   "between 0 and 50",
		`{"query":"q","provider":"zz"}`: "unknown provider",
	}
	for body, want := range cases {
		resp, out := postAsk(t, srv.URL, body, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
		if msg, _ := out["error"].(string); !strings.Contains(msg, want) {
			t.Errorf("%s: expected error containing %q, got %q", body, want, msg)
		}
	}
}

func TestAsk_GeneratorFailure(t *testing.T) {
	gen := &cannedGenerator{err: errors.New("quota exceeded")}
	srv, _ := newTestServer(t, gen, "")

	resp, out := postAsk(t, srv.URL, `{"query":"q"}`, "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if msg, _ := out["error"].(string); !strings.Contains(msg, "quota exceeded") {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestAuth_BearerKey(t *testing.T) {
	gen := &cannedGenerator{replies: []string{`{"final":true,"answer":"ok"}`}}
	srv, _ := newTestServer(t, gen, "secret")

	resp, _ := postAsk(t, srv.URL, `{"query":"q"}`, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = postAsk(t, srv.URL, `{"query":"q"}`, "wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	resp, out := postAsk(t, srv.URL, `{"query":"q"}`, "secret")
	if resp.StatusCode != http.StatusOK || out["answer"] != "ok" {
		t.Fatalf("expected success with token, got %d %v", resp.StatusCode, out)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatal("health check must not require the key")
	}
}

func TestTools_ListsDefinitions(t *testing.T) {
	srv, _ := newTestServer(t, &cannedGenerator{replies: []string{"{}"}}, "")

	resp, err := http.Get(srv.URL + "/v1/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out.Tools) != 1 || out.Tools[0].Name != "calculator" {
		t.Fatalf("unexpected tools %+v", out.Tools)
	}
}

func TestMetrics_Exposed(t *testing.T) {
	gen := &cannedGenerator{replies: []string{
		`{"tool":"calculator","args":{"expression":"2+2"}}`,
		`{"final":true,"answer":"4"}`,
	}}
	srv, _ := newTestServer(t, gen, "")
	postAsk(t, srv.URL, `{"query":"2+2"}`, "")

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`toolagent_tool_calls_total{outcome="ok",tool="calculator"} 1`,
		`toolagent_runs_total{state="done"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
