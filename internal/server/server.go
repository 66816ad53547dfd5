// Package server exposes the agent loop over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"toolagent/internal/agent"
	"toolagent/internal/domain"
)

const maxBodySize = 1 << 20 // 1MB

// Runner answers one query.
type Runner interface {
	Run(ctx context.Context, query string, opts ...agent.RunOption) (*agent.Result, error)
}

// RunnerFunc builds a runner for a request. provider is empty unless the
// client asked for a specific one.
type RunnerFunc func(provider string) (Runner, error)

// Catalog lists the tools a runner can call.
type Catalog interface {
	Definitions() []domain.ToolDefinition
}

type Config struct {
	Addr        string
	APIKey      string // optional bearer token
	NewRunner   RunnerFunc
	Tools       Catalog
	Metrics     http.Handler // optional
	MetricsPath string
	Logger      *slog.Logger
}

type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Query     string `json:"query"`
	MaxSteps  int    `json:"maxSteps,omitempty"`
	Translate string `json:"translate,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler returns the routing mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ask", s.authorized(s.handleAsk))
	mux.HandleFunc("GET /v1/tools", s.authorized(s.handleTools))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.cfg.Metrics)
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      300 * time.Second, // a run makes several generate calls
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("HTTP server started", "addr", s.cfg.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
				writeError(rw, http.StatusUnauthorized, "invalid API key")
				return
			}
		}
		next(rw, r)
	}
}

func (s *Server) handleAsk(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(rw, http.StatusBadRequest, "bad request")
		return
	}
	var req AskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(rw, http.StatusBadRequest, "query is required")
		return
	}
	if req.MaxSteps < 0 || req.MaxSteps > 50 {
		writeError(rw, http.StatusBadRequest, "maxSteps must be between 0 and 50 (0 = default)")
		return
	}

	runner, err := s.cfg.NewRunner(req.Provider)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	var opts []agent.RunOption
	if req.MaxSteps > 0 {
		opts = append(opts, agent.WithMaxSteps(req.MaxSteps))
	}
	if req.Translate != "" {
		opts = append(opts, agent.WithTranslation(req.Translate))
	}

	result, err := runner.Run(r.Context(), req.Query, opts...)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Error("run failed", "error", err)
		writeError(rw, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (s *Server) handleTools(rw http.ResponseWriter, r *http.Request) {
	defs := []domain.ToolDefinition{}
	if s.cfg.Tools != nil {
		defs = append(defs, s.cfg.Tools.Definitions()...)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tools": defs})
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
