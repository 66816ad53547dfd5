package tool

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"toolagent/internal/domain"
)

var daysPattern = regexp.MustCompile(`(\d+)\s*-?\s*day`)

var budgetTiers = []struct {
	tier     string
	keywords []string
}{
	{"budget", []string{"tight budget", "modest budget", "budget trip", "budget-friendly", "cheap"}},
	{"mid", []string{"mid", "moderate"}},
	{"luxury", []string{"luxury", "splurge", "high-end", "5-star"}},
}

// ParseMetaTool extracts trip length and budget tier from a travel request.
// It performs no I/O.
type ParseMetaTool struct{}

func NewParseMetaTool() *ParseMetaTool { return &ParseMetaTool{} }

func (t *ParseMetaTool) Name() string { return "parse_meta" }
func (t *ParseMetaTool) Description() string {
	return "Extract trip length in days and budget tier (budget, mid, luxury) from a travel request"
}

func (t *ParseMetaTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"query": {Type: "string", Description: "The travel request"},
	}, []string{"query"})
}

func (t *ParseMetaTool) Execute(_ context.Context, args map[string]any) (domain.ToolResult, error) {
	days, budget := ParseDaysAndBudget(ArgsString(args, "query"))
	out := domain.ToolResult{"days": nil, "budget": nil}
	if days > 0 {
		out["days"] = days
	}
	if budget != "" {
		out["budget"] = budget
	}
	return out, nil
}

// ParseDaysAndBudget returns the trip length (0 when unknown) and the budget
// tier ("" when unknown). "weekend" counts as two days.
func ParseDaysAndBudget(query string) (int, string) {
	q := strings.ToLower(query)
	days := 0
	if m := daysPattern.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			days = n
		}
	}
	if days == 0 && strings.Contains(q, "weekend") {
		days = 2
	}
	for _, b := range budgetTiers {
		for _, k := range b.keywords {
			if strings.Contains(q, k) {
				return days, b.tier
			}
		}
	}
	return days, ""
}
