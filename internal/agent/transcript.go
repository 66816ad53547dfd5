package agent

import (
	"encoding/json"
	"strings"
	"time"

	"toolagent/internal/domain"
)

// Transcript is the append-only record of one run, plus the plain-text
// rendering of it that each planning prompt includes.
type Transcript struct {
	entries []domain.Entry
	text    strings.Builder
	now     func() time.Time
}

func newTranscript(query string, now func() time.Time) *Transcript {
	t := &Transcript{now: now}
	t.record(domain.RoleUser, map[string]any{"query": query})
	t.text.WriteString("User: " + query + "\n")
	return t
}

func (t *Transcript) record(role domain.Role, payload map[string]any) {
	t.entries = append(t.entries, domain.Entry{
		Timestamp: t.now().UTC(),
		Role:      role,
		Payload:   payload,
	})
}

func (t *Transcript) note(label string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{"error":"unrenderable"}`)
	}
	t.text.WriteString(label + ": " + string(b) + "\n")
}

// Entries returns a copy of the recorded entries in append order.
func (t *Transcript) Entries() []domain.Entry {
	out := make([]domain.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Text is the conversation so far as shown to the planner.
func (t *Transcript) Text() string { return t.text.String() }
