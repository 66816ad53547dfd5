package domain

import "context"

// Generator is the opaque text-generation collaborator: prompt in, raw text
// out. Implementations may fail transiently; callers decide about retries.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
