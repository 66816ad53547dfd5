package domain

import "context"

// Tool is a named capability the planner can invoke.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema of the argument object.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// AliasedTool is implemented by tools that accept alternate argument names.
// Aliases maps an alias to the canonical argument name.
type AliasedTool interface {
	Tool
	Aliases() map[string]string
}

// ToolDefinition is the rendering of a tool shown to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
