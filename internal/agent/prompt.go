package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"toolagent/internal/domain"
)

const maxEchoedReply = 2000

// PromptBuilder renders planning and repair prompts. The system instruction
// is built once from the tool definitions, which never change after startup.
type PromptBuilder struct {
	tools interface {
		Definitions() []domain.ToolDefinition
	}
	extra string

	once   sync.Once
	system string
}

func NewPromptBuilder(tools interface{ Definitions() []domain.ToolDefinition }, extra string) *PromptBuilder {
	return &PromptBuilder{tools: tools, extra: extra}
}

// System returns the fixed system instruction.
func (p *PromptBuilder) System() string {
	p.once.Do(func() {
		var defs []domain.ToolDefinition
		if p.tools != nil {
			defs = p.tools.Definitions()
		}
		p.system = buildSystem(defs, p.extra)
	})
	return p.system
}

// Planning returns the prompt for the next planning round.
func (p *PromptBuilder) Planning(conversation string) string {
	var sb strings.Builder
	sb.WriteString(p.System())
	sb.WriteString("\nConversation so far:\n")
	sb.WriteString(conversation)
	sb.WriteString("\nYour JSON:")
	return sb.String()
}

// Repair asks the model to re-emit an undecodable reply as one valid object.
func (p *PromptBuilder) Repair(reply string, cause error) string {
	if len(reply) > maxEchoedReply {
		reply = reply[:maxEchoedReply] + "..."
	}
	var sb strings.Builder
	sb.WriteString("Your previous reply could not be used")
	if cause != nil {
		sb.WriteString(" (" + cause.Error() + ")")
	}
	sb.WriteString(".\nPrevious reply:\n")
	sb.WriteString(reply)
	sb.WriteString("\n\nRe-emit the same choice as ONE valid JSON object and nothing else. Either\n")
	sb.WriteString(`{"tool":"<name>","args":{...}}` + "\nor\n" + `{"final":true,"answer":"..."}` + "\n")
	sb.WriteString("Your JSON:")
	return sb.String()
}

func buildSystem(defs []domain.ToolDefinition, extra string) string {
	var sb strings.Builder
	sb.WriteString("You are a strict planner for a tool-using assistant. Reply with STRICT JSON ONLY.\n")
	sb.WriteString("Choose EXACTLY one of:\n")
	sb.WriteString(`1) An action: {"tool":"<name>","args":{...}}` + "\n")
	sb.WriteString(`2) A final answer: {"final":true,"answer":"..."}` + "\n\n")

	if len(defs) > 0 {
		sb.WriteString("Tools:\n")
		for _, d := range defs {
			fmt.Fprintf(&sb, "- %s(%s): %s\n", d.Name, renderArgs(d.Parameters), d.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Rules:\n")
	sb.WriteString("- Respond with a SINGLE JSON object on one line, no markdown or prose.\n")
	sb.WriteString("- Use the argument names exactly as listed.\n")
	sb.WriteString("- For facts or arithmetic, call a tool before finalizing.\n")
	sb.WriteString("- Call one tool per reply. You will see its observation before the next reply.\n")
	sb.WriteString("- If an observation contains an error, try another approach or explain it in the final answer.\n")
	sb.WriteString("- If required details are missing, finalize with a short clarifying question.\n")
	if extra != "" {
		sb.WriteString(extra)
		if !strings.HasSuffix(extra, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderArgs turns a parameters schema into "city: string, units?: string".
func renderArgs(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}

	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, 0, len(names))
	for _, n := range names {
		typ := "any"
		if p, ok := props[n].(map[string]any); ok {
			if s, ok := p["type"].(string); ok {
				typ = s
			}
		}
		opt := ""
		if !required[n] {
			opt = "?"
		}
		parts = append(parts, n+opt+": "+typ)
	}
	return strings.Join(parts, ", ")
}
