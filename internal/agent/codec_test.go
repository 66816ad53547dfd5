package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"toolagent/internal/domain"
)

func TestDecode_Action(t *testing.T) {
	d, err := Decode(`{"tool":"weather","args":{"city":"Tokyo"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := d.(domain.Action)
	if !ok {
		t.Fatalf("expected Action, got %T", d)
	}
	if a.Tool != "weather" || a.Args["city"] != "Tokyo" {
		t.Fatalf("unexpected action: %+v", a)
	}
}

func TestDecode_FinalAmongProse(t *testing.T) {
	d, err := Decode(`Sure! {"final":true,"answer":"ok"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := d.(domain.Final); !ok || f.Answer != "ok" {
		t.Fatalf("expected Final{ok}, got %#v", d)
	}
}

func TestDecode_Variants(t *testing.T) {
	cases := []struct {
		name string
		in   string
		tool string
	}{
		{"code fence", "```json\n{\"tool\":\"calculator\",\"args\":{\"expression\":\"1+1\"}}\n```", "calculator"},
		{"role prefix", "assistant\n{\"tool\":\"wikipedia\",\"args\":{\"topic\":\"Go\"}}", "wikipedia"},
		{"multiline", "Here you go:\n{\n  \"tool\": \"distance\",\n  \"args\": {\"city_a\": \"tokyo\", \"city_b\": \"osaka\"}\n}\nDone.", "distance"},
		{"two objects", `{"tool":"weather","args":{"city":"Paris"}} then {"tool":"weather","args":{"city":"London"}}`, "weather"},
		{"invalid escape", `{"tool":"calculator","args":{"expression":"50\% of 10"}}`, "calculator"},
		{"tool name drift", `{"tool":"Parse-Meta","args":{"query":"3 days"}}`, "parse_meta"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decode(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			a, ok := d.(domain.Action)
			if !ok || a.Tool != tc.tool {
				t.Fatalf("expected action %s, got %#v", tc.tool, d)
			}
		})
	}
}

func TestDecode_TwoObjectsPicksFirst(t *testing.T) {
	d, err := Decode(`{"tool":"weather","args":{"city":"Paris"}} and {"tool":"weather","args":{"city":"London"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.(domain.Action).Args["city"] != "Paris" {
		t.Fatalf("expected first object, got %#v", d)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"prose":            "I think it is sunny.",
		"empty":            "",
		"missing args":     `{"tool":"weather"}`,
		"args not object":  `{"tool":"weather","args":"Tokyo"}`,
		"final false":      `{"final":false,"answer":"x"}`,
		"final no answer":  `{"final":true}`,
		"answer not text":  `{"final":true,"answer":42}`,
		"both variants":    `{"tool":"weather","args":{},"final":true,"answer":"x"}`,
		"empty tool":       `{"tool":"","args":{}}`,
		"unbalanced brace": `{"tool":"weather","args":{"city":"Tokyo"}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(in)
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ProtocolError, got %v", err)
			}
			if perr.Raw != in {
				t.Fatalf("error should carry the raw text")
			}
		})
	}
}

func TestEncode(t *testing.T) {
	if got := Encode(domain.Final{Answer: "hi"}); got != `{"final":true,"answer":"hi"}` {
		t.Fatalf("unexpected final encoding %s", got)
	}
	if got := Encode(domain.Action{Tool: "calculator"}); got != `{"tool":"calculator","args":{}}` {
		t.Fatalf("unexpected action encoding %s", got)
	}
}

func TestSanitizeJSONEscapes(t *testing.T) {
	in := `{"a":"x\%y","b":"line\nnext","c":"quote\"d"}`
	var out map[string]string
	if err := json.Unmarshal([]byte(sanitizeJSONEscapes(in)), &out); err != nil {
		t.Fatalf("sanitized text should parse: %v", err)
	}
	if out["a"] != "x%y" || out["b"] != "line\nnext" || out["c"] != `quote"d` {
		t.Fatalf("unexpected values: %v", out)
	}
}

func TestDecode_Properties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("weather actions decode for any city", prop.ForAll(
		func(city string) bool {
			raw, _ := json.Marshal(map[string]any{"tool": "weather", "args": map[string]any{"city": city}})
			d, err := Decode(string(raw))
			if err != nil {
				return false
			}
			a, ok := d.(domain.Action)
			return ok && a.Tool == "weather" && a.Args["city"] == city
		},
		gen.AnyString(),
	))

	properties.Property("a final answer is found among brace-free prose", prop.ForAll(
		func(prefix, suffix, answer string) bool {
			raw := prefix + " " + Encode(domain.Final{Answer: answer}) + " " + suffix
			d, err := Decode(raw)
			if err != nil {
				return false
			}
			f, ok := d.(domain.Final)
			return ok && f.Answer == answer
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.Property("text without braces is a protocol error", prop.ForAll(
		func(s string) bool {
			_, err := Decode(s)
			var perr *ProtocolError
			return errors.As(err, &perr)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
