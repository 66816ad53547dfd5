package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"toolagent/internal/domain"
)

// Dispatch outcomes reported to the observer.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
	OutcomeBadArgs = "bad_args"
	OutcomePanic   = "panic"
)

type registered struct {
	tool    domain.Tool
	schema  *jsonschema.Schema
	aliases map[string]string
}

// Registry holds all available tools and dispatches calls to them.
// Dispatch never returns an error: every failure becomes a ToolResult.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*registered
	filter  *Filter
	logger  *slog.Logger
	observe func(tool, outcome string)
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithFilter hides tools rejected by f from definitions and dispatch.
func WithFilter(f *Filter) RegistryOption {
	return func(r *Registry) { r.filter = f }
}

// WithDispatchObserver registers a hook called after every dispatch.
func WithDispatchObserver(fn func(tool, outcome string)) RegistryOption {
	return func(r *Registry) { r.observe = fn }
}

func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{
		tools:  make(map[string]*registered),
		logger: logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register compiles the tool's argument schema and adds it to the registry.
// Registering a name twice is an error.
func (r *Registry) Register(t domain.Tool) error {
	schema, err := compileSchema(t.Name(), t.Parameters())
	if err != nil {
		return fmt.Errorf("tool %s: %w", t.Name(), err)
	}
	entry := &registered{tool: t, schema: schema}
	if a, ok := t.(domain.AliasedTool); ok {
		entry.aliases = a.Aliases()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name()]; dup {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	r.tools[t.Name()] = entry
	r.logger.Debug("registered tool", "name", t.Name())
	return nil
}

// Get returns the named tool, or nil when it is absent or filtered out.
func (r *Registry) Get(name string) domain.Tool {
	if e := r.lookup(name); e != nil {
		return e.tool
	}
	return nil
}

func (r *Registry) lookup(name string) *registered {
	if !r.filter.IsAllowed(name) {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Normalize folds alias argument names into their canonical names for the
// named tool. An alias is moved only when the canonical name is absent, so
// normalizing twice gives the same result as normalizing once. The input map
// is never modified.
func (r *Registry) Normalize(name string, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	e := r.lookup(name)
	if e == nil || len(e.aliases) == 0 {
		return out
	}

	aliases := make([]string, 0, len(e.aliases))
	for a := range e.aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		canonical := e.aliases[alias]
		v, ok := out[alias]
		if !ok {
			continue
		}
		if _, taken := out[canonical]; taken {
			continue
		}
		out[canonical] = v
		delete(out, alias)
	}
	return out
}

// Dispatch runs the named tool. Unknown tools, argument shape mismatches,
// handler errors and handler panics are all reported in the result's error
// field.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result domain.ToolResult) {
	e := r.lookup(name)
	if e == nil {
		r.report(name, OutcomeUnknown)
		return domain.ErrorResult("unknown tool %s", name)
	}

	args = r.Normalize(name, args)
	if err := validateArgs(e.schema, args); err != nil {
		r.logger.Warn("tool arguments rejected", "tool", name, "err", err)
		r.report(name, OutcomeBadArgs)
		return domain.ErrorResult("bad arguments for %s: %s", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			r.report(name, OutcomePanic)
			result = domain.ErrorResult("%s failed: %v", name, p)
		}
	}()

	r.logger.Info("tool dispatch", "tool", name, "args", args)
	res, err := e.tool.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "err", err)
		r.report(name, OutcomeError)
		return domain.ErrorResult("%s failed: %s", name, err)
	}
	if res == nil {
		res = domain.ToolResult{}
	}
	if res.Failed() {
		r.report(name, OutcomeError)
	} else {
		r.report(name, OutcomeOK)
	}
	return res
}

func (r *Registry) report(tool, outcome string) {
	if r.observe != nil {
		r.observe(tool, outcome)
	}
}

// Definitions returns the visible tools sorted by name, for prompt rendering.
func (r *Registry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for name, e := range r.tools {
		if !r.filter.IsAllowed(name) {
			continue
		}
		defs = append(defs, domain.ToolDefinition{
			Name:        name,
			Description: e.tool.Description(),
			Parameters:  e.tool.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the visible tool names in sorted order.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
// Properties not listed are allowed.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, name := range required {
			req[i] = name
		}
		schema["required"] = req
	}
	return schema
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	doc, err := roundTrip(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	inst, err := roundTrip(args)
	if err != nil {
		return fmt.Errorf("arguments are not JSON: %v", err)
	}
	if err := schema.Validate(inst); err != nil {
		return &ArgumentError{Detail: validationDetail(err)}
	}
	return nil
}

// roundTrip re-decodes v through JSON so the validator sees plain JSON
// values regardless of the Go types the model output produced.
func roundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// validationDetail flattens the validator's multi-line report into one line.
func validationDetail(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}

// ArgumentError reports an argument shape mismatch.
type ArgumentError struct {
	Detail string
}

func (e *ArgumentError) Error() string { return e.Detail }

// ArgsString returns args[key] as a string, or "" when absent.
func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
