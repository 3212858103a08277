// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/assistant"
	"github.com/jeranaias/rigrun-assist/internal/router"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8787

	// DefaultHost binds to loopback only.
	DefaultHost = "127.0.0.1"

	// MaxRequestBodySize caps command bodies. Documents can be inline base64.
	MaxRequestBodySize = 32 * 1024 * 1024

	// StatusProbeTimeout bounds backend probes made by /health and
	// /status/local_model.
	StatusProbeTimeout = 2 * time.Second

	// DefaultRequestTimeout bounds one command end to end.
	DefaultRequestTimeout = 5 * time.Minute

	// Version is the server version.
	Version = "0.3.0"
)

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// CommandRequest is the body of POST /assistant/command.
type CommandRequest struct {
	Prompt string `json:"prompt"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Routing router.StatusReport `json:"routing"`
	Stats   telemetry.Snapshot  `json:"stats"`
}

// LocalModelStatus is the body of GET /status/local_model.
type LocalModelStatus struct {
	Available bool                `json:"available"`
	Provider  string              `json:"provider,omitempty"`
	Model     string              `json:"model,omitempty"`
	LastCall  *telemetry.CallInfo `json:"last_call,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// ============================================================================
// SERVER
// ============================================================================

// Config configures a Server.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Auth           *AuthConfig
	RateLimiter    *RateLimiter
	Logger         *slog.Logger
}

// Server exposes the assistant over HTTP.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	server  *http.Server
	service *assistant.Service
	router  *router.ModelRouter
	logger  *slog.Logger
	started time.Time

	mu sync.Mutex
}

// New creates a Server. router is used for status endpoints only.
func New(service *assistant.Service, r *router.ModelRouter, cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = MaxRequestBodySize
	}
	if cfg.Auth == nil {
		cfg.Auth = DefaultAuthConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		service: service,
		router:  r,
		logger:  logger.With("component", "server"),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /assistant/command", s.handleCommand)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status/local_model", s.handleLocalModelStatus)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RequestIDMiddleware(),
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.cfg.RateLimiter, s.logger),
		AuthMiddleware(s.cfg.Auth, s.logger),
	)(s.mux)
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req CommandRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", requestID)
			return
		}
		writeError(w, http.StatusBadRequest, "request body must be JSON with a prompt field", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	resp, err := s.service.Handle(ctx, req.Prompt)
	if err != nil {
		status, msg := s.commandError(err)
		writeError(w, status, msg, requestID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// commandError maps a Handle error to a status and a message safe to return.
func (s *Server) commandError(err error) (int, string) {
	var ce *router.ConfigurationError
	switch {
	case errors.Is(err, assistant.ErrEmptyPrompt), errors.Is(err, assistant.ErrPromptTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable, "no model backend is available: " + s.service.SanitizeText(ce.Reason)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		return http.StatusServiceUnavailable, "request canceled"
	default:
		s.logger.Error("COMMAND_ERROR", "error_type", fmt.Sprintf("%T", err))
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), StatusProbeTimeout)
	defer cancel()

	report := s.router.Status(ctx)
	report.Local.Error = s.service.SanitizeText(report.Local.Error)
	report.Remote.Error = s.service.SanitizeText(report.Remote.Error)

	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Routing: report,
		Stats:   s.router.Recorder().Snapshot(),
	}
	status := http.StatusOK
	if !report.Ready() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLocalModelStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), StatusProbeTimeout)
	defer cancel()

	local := s.router.Status(ctx).Local
	resp := LocalModelStatus{
		Available: local.Available,
		Provider:  local.Name,
		Model:     local.Model,
	}
	if last, ok := s.router.Recorder().LastCall(router.BackendLocal.String()); ok {
		resp.LastCall = &last
	}
	if !local.Available {
		msg := local.Error
		if msg == "" {
			msg = "local model is not available"
		}
		resp.Message = s.service.SanitizeText(msg)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("SERVER_START", "addr", srv.Addr, "version", Version, "auth", s.cfg.Auth.Enabled)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("SERVER_SHUTDOWN", "stats", s.router.Recorder().Snapshot())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, requestID ...string) {
	resp := ErrorResponse{Error: strings.TrimSpace(message)}
	if len(requestID) > 0 {
		resp.RequestID = requestID[0]
	}
	writeJSON(w, status, resp)
}
