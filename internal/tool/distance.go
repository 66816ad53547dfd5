package tool

import (
	"context"
	"math"

	"toolagent/internal/domain"
)

// DistanceTool computes the great-circle distance between two known cities.
type DistanceTool struct {
	gazetteer Gazetteer
}

func NewDistanceTool() *DistanceTool { return &DistanceTool{gazetteer: DefaultGazetteer} }

func (t *DistanceTool) Name() string { return "distance" }
func (t *DistanceTool) Description() string {
	return "Great-circle distance in km between two known cities"
}

func (t *DistanceTool) Parameters() map[string]any {
	return ToolParameters(map[string]Param{
		"city_a": {Type: "string", Description: "First city"},
		"city_b": {Type: "string", Description: "Second city"},
	}, []string{"city_a", "city_b"})
}

func (t *DistanceTool) Aliases() map[string]string {
	return map[string]string{"from": "city_a", "origin": "city_a", "to": "city_b", "destination": "city_b"}
}

func (t *DistanceTool) Execute(_ context.Context, args map[string]any) (domain.ToolResult, error) {
	nameA, nameB := ArgsString(args, "city_a"), ArgsString(args, "city_b")
	a, okA := t.gazetteer.Lookup(nameA)
	b, okB := t.gazetteer.Lookup(nameB)
	if !okA || !okB {
		return domain.ToolResult{"from": nameA, "to": nameB, domain.ErrorKey: "unknown city"}, nil
	}
	km := math.Round(HaversineKm(a, b)*10) / 10
	return domain.ToolResult{"from": titleCase(a.Key), "to": titleCase(b.Key), "km": km}, nil
}
