// Package channel holds the interactive terminal front end.
package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"toolagent/internal/agent"
	"toolagent/internal/domain"
)

// Runner answers one query.
type Runner interface {
	Run(ctx context.Context, query string, opts ...agent.RunOption) (*agent.Result, error)
}

// Catalog lists the tools a runner can call.
type Catalog interface {
	Definitions() []domain.ToolDefinition
}

// CLI is a line-oriented REPL: each line is one query run to completion.
type CLI struct {
	runner    Runner
	tools     Catalog
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	spinner   bool
	translate string

	maxSteps  int
	showTrace bool

	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
	thinkDone chan struct{}
}

type CLIConfig struct {
	Runner Runner
	Tools  Catalog
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
	// Spinner animates while a run is in progress; enable only on a terminal.
	Spinner   bool
	MaxSteps  int
	Translate string
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CLI{
		runner:    cfg.Runner,
		tools:     cfg.Tools,
		logger:    cfg.Logger,
		in:        cfg.In,
		out:       cfg.Out,
		spinner:   cfg.Spinner,
		translate: cfg.Translate,
		maxSteps:  cfg.MaxSteps,
	}
}

// Start runs the REPL and blocks until EOF, /quit, or context cancellation.
func (c *CLI) Start(ctx context.Context) error {
	_, _ = fmt.Fprintln(c.out, "toolagent chat. Type a question and press Enter. Type /help for commands, /quit to exit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}
		if strings.HasPrefix(line, "/") {
			c.command(line)
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			_, _ = fmt.Fprintf(c.out, "error: %v\n", err)
		}
		_, _ = fmt.Fprint(c.out, "You> ")
	}
}

func (c *CLI) ask(ctx context.Context, query string) error {
	var opts []agent.RunOption
	if c.maxSteps > 0 {
		opts = append(opts, agent.WithMaxSteps(c.maxSteps))
	}
	if c.translate != "" {
		opts = append(opts, agent.WithTranslation(c.translate))
	}

	c.startThinking()
	res, err := c.runner.Run(ctx, query, opts...)
	c.stopThinking()
	if err != nil {
		return err
	}

	if c.showTrace {
		for _, e := range res.Trace {
			data, _ := json.Marshal(e.Payload)
			_, _ = fmt.Fprintf(c.out, "  [%s] %s\n", e.Role, data)
		}
	}
	_, _ = fmt.Fprintln(c.out, "--- toolagent ---")
	_, _ = fmt.Fprintln(c.out, res.Answer)
	_, _ = fmt.Fprintf(c.out, "----------------- (%s, %d steps)\n", res.State, res.Steps)
	return nil
}

func (c *CLI) command(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		_, _ = fmt.Fprintln(c.out, "Commands:\n  /tools        list available tools\n  /steps N      set the step budget\n  /trace        toggle transcript output\n  /quit         exit")
	case "/tools":
		if c.tools == nil {
			return
		}
		for _, d := range c.tools.Definitions() {
			_, _ = fmt.Fprintf(c.out, "  %-12s %s\n", d.Name, d.Description)
		}
	case "/steps":
		if len(fields) != 2 {
			_, _ = fmt.Fprintf(c.out, "step budget: %d\n", c.maxSteps)
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > 50 {
			_, _ = fmt.Fprintln(c.out, "usage: /steps N (1-50)")
			return
		}
		c.maxSteps = n
		_, _ = fmt.Fprintf(c.out, "step budget set to %d\n", n)
	case "/trace":
		c.showTrace = !c.showTrace
		_, _ = fmt.Fprintf(c.out, "trace output: %t\n", c.showTrace)
	default:
		_, _ = fmt.Fprintf(c.out, "unknown command %s (try /help)\n", fields[0])
	}
}

func (c *CLI) startThinking() {
	if !c.spinner {
		return
	}
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	c.thinkDone = make(chan struct{})
	go func() {
		defer close(c.thinkDone)
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.thinkStop:
				fmt.Fprint(c.out, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Thinking...", frames[i%len(frames)])
				i++
			}
		}
	}()
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	if !c.thinking {
		c.thinkMu.Unlock()
		return
	}
	c.thinking = false
	close(c.thinkStop)
	done := c.thinkDone
	c.thinkMu.Unlock()
	<-done
}
