package tool

import (
	"context"
	"math"
	"regexp"
	"strings"

	"toolagent/internal/domain"
)

// Only digits, whitespace, '.', the four operators and parentheses get as far
// as the parser.
var arithPattern = regexp.MustCompile(`^[0-9.\s+\-*/()]+$`)

// CalculatorTool evaluates plain arithmetic.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (t *CalculatorTool) Name() string { return "calculator" }
func (t *CalculatorTool) Description() string {
	return "Evaluate arithmetic with + - * / and parentheses, e.g. 12.5 + 8.75"
}

func (t *CalculatorTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"expression": {Type: "string", Description: "Arithmetic expression"},
	}, []string{"expression"})
}

func (t *CalculatorTool) Aliases() map[string]string {
	return map[string]string{"expr": "expression", "input": "expression"}
}

func (t *CalculatorTool) Execute(_ context.Context, args map[string]any) (domain.ToolResult, error) {
	raw := ArgsString(args, "expression")
	expr := strings.TrimSpace(raw)
	if expr == "" || !arithPattern.MatchString(expr) {
		return domain.ToolResult{"expression": raw, domain.ErrorKey: "invalid expression"}, nil
	}
	v, err := evalArith(expr)
	if err != nil {
		return domain.ToolResult{"expression": expr, domain.ErrorKey: err.Error()}, nil
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return domain.ToolResult{"expression": expr, domain.ErrorKey: "non-finite result"}, nil
	}
	return domain.ToolResult{"expression": expr, "result": v}, nil
}
