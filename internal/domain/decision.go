package domain

import "encoding/json"

// Decision is the structured output of one planning step. It is either an
// Action or a Final; no other implementations exist.
type Decision interface {
	isDecision()
}

// Action asks the orchestrator to run a named tool with arguments.
type Action struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Final ends the run with an answer for the user.
type Final struct {
	Answer string `json:"answer"`
}

func (Action) isDecision() {}
func (Final) isDecision()  {}

// MarshalJSON renders the action in protocol form: {"tool":...,"args":{...}}.
func (a Action) MarshalJSON() ([]byte, error) {
	args := a.Args
	if args == nil {
		args = map[string]any{}
	}
	return json.Marshal(struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}{a.Tool, args})
}

// MarshalJSON renders the final answer in protocol form: {"final":true,"answer":...}.
func (f Final) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Final  bool   `json:"final"`
		Answer string `json:"answer"`
	}{true, f.Answer})
}
