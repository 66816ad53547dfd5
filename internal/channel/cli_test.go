package channel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"toolagent/internal/agent"
	"toolagent/internal/domain"
)

type fakeRunner struct {
	queries []string
	optsLen []int
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, query string, opts ...agent.RunOption) (*agent.Result, error) {
	f.queries = append(f.queries, query)
	f.optsLen = append(f.optsLen, len(opts))
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{
		Answer: "answer to " + query,
		State:  agent.StateDone,
		Steps:  1,
		Trace: []domain.Entry{
			{Role: domain.RoleUser, Payload: map[string]any{"query": query}},
		},
	}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "weather", Description: "Current temperature"}}
}

func runCLI(t *testing.T, runner Runner, input string) string {
	t.Helper()
	var out bytes.Buffer
	cli := NewCLI(CLIConfig{Runner: runner, Tools: fakeCatalog{}, In: strings.NewReader(input), Out: &out})
	if err := cli.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out.String()
}

func TestCLI_AnswersEachLine(t *testing.T) {
	r := &fakeRunner{}
	out := runCLI(t, r, "weather in tokyo\n\nwhat is 2+2\n")

	if len(r.queries) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(r.queries))
	}
	if !strings.Contains(out, "answer to weather in tokyo") || !strings.Contains(out, "answer to what is 2+2") {
		t.Fatalf("answers missing from output:\n%s", out)
	}
}

func TestCLI_QuitStopsReading(t *testing.T) {
	r := &fakeRunner{}
	runCLI(t, r, "/quit\nnever asked\n")
	if len(r.queries) != 0 {
		t.Fatalf("expected no runs after /quit, got %v", r.queries)
	}
}

func TestCLI_Commands(t *testing.T) {
	r := &fakeRunner{}
	out := runCLI(t, r, "/tools\n/steps 3\n/trace\nhello\n/bogus\n")

	if !strings.Contains(out, "weather") {
		t.Error("/tools should list tools")
	}
	if !strings.Contains(out, "step budget set to 3") {
		t.Error("/steps should set the budget")
	}
	if r.optsLen[0] != 1 {
		t.Errorf("expected the step option to be passed, got %d options", r.optsLen[0])
	}
	if !strings.Contains(out, "[user]") {
		t.Error("/trace should print transcript entries")
	}
	if !strings.Contains(out, "unknown command /bogus") {
		t.Error("unknown commands should be reported")
	}
}

func TestCLI_RunErrorKeepsGoing(t *testing.T) {
	r := &fakeRunner{err: errors.New("provider down")}
	out := runCLI(t, r, "first\nsecond\n")
	if len(r.queries) != 2 {
		t.Fatalf("expected both lines to run, got %d", len(r.queries))
	}
	if strings.Count(out, "error: provider down") != 2 {
		t.Fatalf("expected errors to be printed:\n%s", out)
	}
}
