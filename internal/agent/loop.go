package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"toolagent/internal/domain"
)

const defaultMaxSteps = 6

// StepLimitMessage is the answer given when the step budget runs out.
const StepLimitMessage = "I reached the step limit. Try a more specific query."

// State is a stage of the orchestration loop.
type State string

const (
	StateStart            State = "start"
	StatePlanning         State = "planning"
	StateActing           State = "acting"
	StateObserving        State = "observing"
	StateFinalizing       State = "finalizing"
	StateDone             State = "done"
	StateStepLimitReached State = "step_limit_reached"
)

// Recovery outcomes for undecodable planner output.
const (
	RepairSucceeded = "repaired"
	RepairFellBack  = "fallback"
)

// Dispatcher runs tools. tool.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) domain.ToolResult
	Definitions() []domain.ToolDefinition
}

// Metrics receives loop events. metrics.Collector implements it.
type Metrics interface {
	PlanningRound()
	ProtocolRepair(outcome string)
	RunFinished(state string)
	ObserveGenerate(d time.Duration)
}

// FallbackPolicy picks the action to take when planner output cannot be
// decoded even after a repair attempt.
type FallbackPolicy func(query string) domain.Action

// WikipediaFallback looks the raw query up as an encyclopedia topic.
func WikipediaFallback(query string) domain.Action {
	return domain.Action{Tool: "wikipedia", Args: map[string]any{"topic": query}}
}

// Result is what one run produces. Trace is the full transcript.
type Result struct {
	RunID  string         `json:"runId"`
	Query  string         `json:"query"`
	Answer string         `json:"answer"`
	State  State          `json:"state"`
	Steps  int            `json:"steps"`
	Trace  []domain.Entry `json:"trace"`
}

// Loop drives planning and tool execution for one query at a time. A Loop
// holds no per-run state, so one value may serve concurrent runs.
type Loop struct {
	generator domain.Generator
	tools     Dispatcher
	prompt    *PromptBuilder
	logger    *slog.Logger
	metrics   Metrics
	tracer    trace.Tracer
	fallback  FallbackPolicy
	maxSteps  int
	now       func() time.Time
}

// Config holds all dependencies and tuning parameters for the loop.
type Config struct {
	Generator domain.Generator
	Tools     Dispatcher
	Prompt    *PromptBuilder // optional: defaults to one built from Tools
	Logger    *slog.Logger
	Metrics   Metrics        // optional
	Tracer    trace.Tracer   // optional: defaults to the global provider
	Fallback  FallbackPolicy // optional: defaults to WikipediaFallback
	MaxSteps  int            // default 6
	Clock     func() time.Time
}

func NewLoop(cfg Config) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Prompt == nil {
		cfg.Prompt = NewPromptBuilder(cfg.Tools, "")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("toolagent/agent")
	}
	if cfg.Fallback == nil {
		cfg.Fallback = WikipediaFallback
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Loop{
		generator: cfg.Generator,
		tools:     cfg.Tools,
		prompt:    cfg.Prompt,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		fallback:  cfg.Fallback,
		maxSteps:  cfg.MaxSteps,
		now:       cfg.Clock,
	}
}

// MaxSteps returns the default step budget.
func (l *Loop) MaxSteps() int { return l.maxSteps }

type runOptions struct {
	maxSteps    int
	translateTo string
}

// RunOption adjusts a single run.
type RunOption func(*runOptions)

// WithMaxSteps overrides the step budget for one run.
func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithTranslation routes the final answer through the translate tool.
func WithTranslation(lang string) RunOption {
	return func(o *runOptions) { o.translateTo = lang }
}

// Run answers query. Malformed model output and tool failures never end a
// run early; the error return is reserved for a failed generation call and
// for context cancellation.
func (l *Loop) Run(ctx context.Context, query string, opts ...RunOption) (*Result, error) {
	o := runOptions{maxSteps: l.maxSteps}
	for _, fn := range opts {
		fn(&o)
	}

	runID := uuid.NewString()
	ctx, span := l.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.max_steps", o.maxSteps),
	))
	defer span.End()

	logger := l.logger.With("run", runID)
	logger.Debug("state", "state", StateStart)

	tr := newTranscript(query, l.now)
	if o.translateTo != "" {
		fmt.Fprintf(&tr.text, "Hint: the final answer will be translated to '%s'.\n", o.translateTo)
	}

	finish := func(state State, answer string, steps int) *Result {
		tr.record(domain.RoleFinal, map[string]any{"answer": answer})
		logger.Debug("state", "state", state, "steps", steps)
		span.SetAttributes(attribute.String("run.state", string(state)), attribute.Int("run.steps", steps))
		if l.metrics != nil {
			l.metrics.RunFinished(string(state))
		}
		return &Result{
			RunID:  runID,
			Query:  query,
			Answer: answer,
			State:  state,
			Steps:  steps,
			Trace:  tr.Entries(),
		}
	}
	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if l.metrics != nil {
			l.metrics.RunFinished("error")
		}
		return nil, err
	}

	for step := 1; step <= o.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		logger.Debug("state", "state", StatePlanning, "step", step)
		decision, recovery, err := l.plan(ctx, logger, tr, query)
		if err != nil {
			return fail(err)
		}
		payload := map[string]any{"step": step, "decision": decision}
		if recovery != "" {
			payload["recovery"] = recovery
		}
		tr.record(domain.RolePlanner, payload)
		tr.note("Planner", decision)

		switch d := decision.(type) {
		case domain.Final:
			logger.Debug("state", "state", StateFinalizing, "step", step)
			answer := d.Answer
			if o.translateTo != "" {
				answer = l.translate(ctx, logger, tr, step, answer, o.translateTo)
			}
			return finish(StateDone, answer, step), nil

		case domain.Action:
			logger.Debug("state", "state", StateActing, "step", step, "tool", d.Tool)
			obs := l.dispatch(ctx, d.Tool, d.Args)
			logger.Debug("state", "state", StateObserving, "step", step, "failed", obs.Failed())
			tr.record(domain.RoleObservation, map[string]any{
				"step":        step,
				"tool":        d.Tool,
				"args":        d.Args,
				"observation": obs,
			})
			tr.note("Observation", obs)
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	logger.Warn("step budget exhausted", "max_steps", o.maxSteps)
	return finish(StateStepLimitReached, StepLimitMessage, o.maxSteps), nil
}

// plan runs one planning round: generate, decode, and on a protocol error
// one repair call followed by the fallback policy.
func (l *Loop) plan(ctx context.Context, logger *slog.Logger, tr *Transcript, query string) (domain.Decision, string, error) {
	ctx, span := l.tracer.Start(ctx, "agent.plan")
	defer span.End()
	if l.metrics != nil {
		l.metrics.PlanningRound()
	}

	raw, err := l.generate(ctx, l.prompt.Planning(tr.Text()))
	if err != nil {
		return nil, "", err
	}
	d, perr := Decode(raw)
	if perr == nil {
		return d, "", nil
	}

	logger.Warn("planner output undecodable, requesting repair", "err", perr)
	raw, err = l.generate(ctx, l.prompt.Repair(raw, perr))
	if err != nil {
		return nil, "", err
	}
	if d, perr = Decode(raw); perr == nil {
		l.recordRepair(RepairSucceeded)
		return d, RepairSucceeded, nil
	}
	logger.Warn("repair failed, using fallback action", "err", perr)
	l.recordRepair(RepairFellBack)
	span.SetAttributes(attribute.Bool("plan.fallback", true))
	return l.fallback(query), RepairFellBack, nil
}

func (l *Loop) recordRepair(outcome string) {
	if l.metrics != nil {
		l.metrics.ProtocolRepair(outcome)
	}
}

func (l *Loop) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := l.generator.Generate(ctx, prompt)
	if l.metrics != nil {
		l.metrics.ObserveGenerate(time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", l.generator.Name(), err)
	}
	return out, nil
}

func (l *Loop) dispatch(ctx context.Context, name string, args map[string]any) domain.ToolResult {
	ctx, span := l.tracer.Start(ctx, "agent.dispatch", trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	res := l.tools.Dispatch(ctx, name, args)
	if res.Failed() {
		span.SetStatus(codes.Error, res.ErrorMessage())
	}
	return res
}

// translate rewrites the final answer into lang. The observation is recorded
// only when translation succeeds; otherwise the original answer stands.
func (l *Loop) translate(ctx context.Context, logger *slog.Logger, tr *Transcript, step int, answer, lang string) string {
	res := l.dispatch(ctx, "translate", map[string]any{"text": answer, "target_lang": lang})
	translated, ok := res["translated"].(string)
	if res.Failed() || !ok || translated == "" {
		logger.Warn("final translation failed, keeping original answer", "lang", lang, "err", res.ErrorMessage())
		return answer
	}
	tr.record(domain.RoleObservation, map[string]any{
		"step":        step,
		"tool":        "translate",
		"args":        map[string]any{"target_lang": lang},
		"observation": res,
	})
	return translated
}
