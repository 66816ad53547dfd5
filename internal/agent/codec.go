package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"toolagent/internal/domain"
)

// ProtocolError reports model output that could not be decoded into a
// Decision.
type ProtocolError struct {
	Raw    string
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// Decode turns raw model text into a Decision. It accepts, in order: the
// whole text as JSON, the greedy span from the first '{' to the last '}',
// and the first balanced object. Each candidate is retried once with invalid
// escape sequences repaired. The object must be either {"tool": string,
// "args": object} or {"final": true, "answer": string}, never both.
//
// Code fences and leaked role prefixes such as "assistant:" are stripped
// first. Small models emit both regularly.
func Decode(raw string) (domain.Decision, error) {
	text := stripCodeFence(stripRolePrefix(strings.TrimSpace(raw)))

	candidates := []string{text}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	if start, end := findJSONBounds(text); start >= 0 && end > start {
		candidates = append(candidates, text[start:end])
	}

	var shapeErr error
	for _, c := range candidates {
		obj, ok := parseObject(c)
		if !ok {
			continue
		}
		d, err := toDecision(obj)
		if err == nil {
			return d, nil
		}
		if shapeErr == nil {
			shapeErr = err
		}
	}
	if shapeErr != nil {
		return nil, &ProtocolError{Raw: raw, Reason: shapeErr.Error()}
	}
	return nil, &ProtocolError{Raw: raw, Reason: "no JSON object found"}
}

// Encode renders a Decision in the wire form the model is asked to produce.
func Encode(d domain.Decision) string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	if err := json.Unmarshal([]byte(sanitizeJSONEscapes(s)), &obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}

func toDecision(obj map[string]any) (domain.Decision, error) {
	toolName, hasTool := obj["tool"].(string)
	args, hasArgs := obj["args"].(map[string]any)
	isAction := hasTool && strings.TrimSpace(toolName) != "" && hasArgs

	final, _ := obj["final"].(bool)
	answer, hasAnswer := obj["answer"].(string)
	isFinal := final && hasAnswer

	switch {
	case isAction && isFinal:
		return nil, fmt.Errorf("object is both an action and a final answer")
	case isAction:
		return domain.Action{Tool: normalizeToolName(toolName), Args: args}, nil
	case isFinal:
		return domain.Final{Answer: answer}, nil
	case hasTool && !hasArgs:
		return nil, fmt.Errorf("action %q has no args object", toolName)
	case final && !hasAnswer:
		return nil, fmt.Errorf("final decision has no answer string")
	default:
		return nil, fmt.Errorf("object has neither a tool with args nor a final answer")
	}
}

// normalizeToolName folds case and separators: "Parse-Meta" -> "parse_meta".
func normalizeToolName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) >= 3 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return s
}

// stripRolePrefix removes role-name prefixes that some models leak into their
// output, e.g. "assistant\n{...}" or "Planner: {...}".
func stripRolePrefix(s string) string {
	prefixes := []string{
		"assistant\n", "Assistant\n",
		"assistant:", "Assistant:",
		"planner:", "Planner:",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

// findJSONBounds locates the first balanced top-level JSON object in s,
// skipping braces inside strings. Returns the start index and end+1 index,
// or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}
	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// sanitizeJSONEscapes fixes invalid escape sequences inside JSON strings.
// Valid JSON escapes: \", \\, \/, \b, \f, \n, \r, \t, \uXXXX.
// Invalid ones (e.g. \% or \Y) are corrected by dropping the backslash.
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inString {
			if ch == '"' {
				inString = true
			}
			buf.WriteByte(ch)
			continue
		}
		switch {
		case ch == '"':
			inString = false
			buf.WriteByte(ch)
		case ch == '\\' && i+1 < len(s):
			switch next := s[i+1]; next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
				buf.WriteByte(next)
				i++
			default:
				// invalid escape: drop the backslash
			}
		default:
			buf.WriteByte(ch)
		}
	}
	return buf.String()
}
