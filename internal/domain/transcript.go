package domain

import "time"

// Role tags a transcript entry.
type Role string

const (
	RoleUser        Role = "user"
	RolePlanner     Role = "planner"
	RoleObservation Role = "observation"
	RoleFinal       Role = "final"
)

// Entry is one append-only record in a run's transcript.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Role      Role           `json:"role"`
	Payload   map[string]any `json:"data"`
}
