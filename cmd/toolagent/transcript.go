package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"toolagent/internal/agent"
	"toolagent/internal/channel"
	"toolagent/internal/config"
	"toolagent/internal/domain"
)

// appendTranscript writes each entry as one JSON line at the end of path.
func appendTranscript(path string, entries []domain.Entry) error {
	f, err := os.OpenFile(config.ExpandPath(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return fmt.Errorf("write transcript: %w", err)
		}
	}
	return f.Close()
}

// transcriptRunner appends the trace of every completed run to a file.
type transcriptRunner struct {
	inner  channel.Runner
	path   string
	logger *slog.Logger
}

func (r *transcriptRunner) Run(ctx context.Context, query string, opts ...agent.RunOption) (*agent.Result, error) {
	res, err := r.inner.Run(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	if err := appendTranscript(r.path, res.Trace); err != nil {
		r.logger.Warn("transcript not written", "path", r.path, "err", err)
	}
	return res, nil
}
