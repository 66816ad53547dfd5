package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"toolagent/internal/agent"
	"toolagent/internal/cache"
	"toolagent/internal/domain"
)

const defaultWidth = 100

// terminalWidth returns the stdout width, or defaultWidth when stdout is
// not a terminal.
func terminalWidth() int {
	if !isTerminal(os.Stdout) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func writeResultJSON(w io.Writer, res *agent.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeResult(w io.Writer, res *agent.Result, verbose bool) {
	if verbose {
		for _, e := range res.Trace {
			data, _ := json.Marshal(e.Payload)
			fmt.Fprintf(w, "[%s] %s\n", e.Role, data)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, res.Answer)
	if res.State != agent.StateDone || verbose {
		fmt.Fprintf(w, "(%s after %d steps, run %s)\n", res.State, res.Steps, res.RunID)
	}
}

func writeTools(w io.Writer, defs []domain.ToolDefinition, width int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tARGUMENTS\tDESCRIPTION")
	for _, d := range defs {
		args := argNames(d.Parameters)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, args, truncate(d.Description, width-len(d.Name)-len(args)-6))
	}
	tw.Flush()
}

// argNames lists schema properties, marking optional ones with "?".
func argNames(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, s := range req {
			required[s] = true
		}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		if !required[name] {
			name += "?"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func writeCache(w io.Writer, entries map[string]cache.Entry, ttl time.Duration, now time.Time) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tAGE\tSTATUS")
	for _, k := range keys {
		age := now.Sub(entries[k].CreatedAt).Truncate(time.Second)
		status := "fresh"
		if age > ttl {
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, age, status)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d entries, ttl %s\n", len(keys), ttl)
}

func writeConfigPaths(w io.Writer, paths map[string]any) {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data, _ := json.Marshal(paths[k])
		fmt.Fprintf(w, "%s = %s\n", k, data)
	}
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
