package domain

import "fmt"

// ToolResult is what every tool call produces. A failed call carries a single
// "error" field; its presence is the only failure signal consumers check.
type ToolResult map[string]any

// ErrorKey is the field name that marks a ToolResult as failed.
const ErrorKey = "error"

// ErrorResult builds a failed ToolResult holding only the error message.
func ErrorResult(format string, args ...any) ToolResult {
	return ToolResult{ErrorKey: fmt.Sprintf(format, args...)}
}

// Failed reports whether the result carries an error field.
func (r ToolResult) Failed() bool {
	_, ok := r[ErrorKey]
	return ok
}

// ErrorMessage returns the error message, or "" when the call succeeded.
func (r ToolResult) ErrorMessage() string {
	v, ok := r[ErrorKey]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
