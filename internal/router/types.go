// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

// ============================================================================
// BACKEND KIND
// ============================================================================

// BackendKind identifies where a model runs.
type BackendKind int

const (
	// BackendLocal is a model on this machine (Ollama).
	BackendLocal BackendKind = iota
	// BackendRemote is a hosted chat-completion API.
	BackendRemote
)

// String returns the lowercase name of the kind.
func (k BackendKind) String() string {
	switch k {
	case BackendLocal:
		return "local"
	case BackendRemote:
		return "remote"
	default:
		return fmt.Sprintf("BackendKind(%d)", k)
	}
}

// MarshalText encodes the kind as its name.
func (k BackendKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsLocal returns true for BackendLocal.
func (k BackendKind) IsLocal() bool {
	return k == BackendLocal
}

// ============================================================================
// BACKEND INTERFACE
// ============================================================================

// Backend is a model runtime the router can send messages to.
//
// Configured reports static readiness (runtime URL set, API key present)
// without touching the network. Ping checks reachability. Complete returns
// *BackendError for failures so callers can tell unavailable from failed.
type Backend interface {
	Kind() BackendKind
	Name() string
	Configured() bool
	Ping(ctx context.Context) error
	Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (string, error)
}

// ============================================================================
// OPTIONS
// ============================================================================

// Mode is the routing mode for public input.
type Mode string

const (
	// ModeAuto prefers the remote backend for public input.
	ModeAuto Mode = "auto"
	// ModeLocal keeps everything on the local backend.
	ModeLocal Mode = "local"
	// ModeRemote is ModeAuto with an explicit preference recorded in reasons.
	ModeRemote Mode = "remote"
)

// ParseMode maps a config string to a Mode. "hybrid" and "cloud" are
// accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "hybrid":
		return ModeAuto, nil
	case "local":
		return ModeLocal, nil
	case "remote", "cloud":
		return ModeRemote, nil
	default:
		return "", fmt.Errorf("unknown routing mode %q (want auto, local or remote)", s)
	}
}

// DefaultProbeTimeout bounds each reachability check.
const DefaultProbeTimeout = 2 * time.Second

// Options configures a ModelRouter.
type Options struct {
	// Mode is the routing mode for public input (default: auto).
	Mode Mode
	// Paranoid blocks the remote backend for every request.
	Paranoid bool
	// ProbeTimeout bounds each Ping (default: 2s).
	ProbeTimeout time.Duration

	// Recorder receives routing decisions and call info. Optional.
	Recorder *telemetry.Recorder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ShouldUseLocal returns true if routing must stay on the local backend
// regardless of the privacy verdict.
func (o Options) ShouldUseLocal() bool {
	return o.Paranoid || o.Mode == ModeLocal
}

// ============================================================================
// SELECTION
// ============================================================================

// Selection is the outcome of routing one request. It is recomputed for
// every call and never cached across verdicts.
type Selection struct {
	Kind    BackendKind `json:"kind"`
	Backend Backend     `json:"-"`
	// Name is the backend name, empty when no backend is ready.
	Name string `json:"name,omitempty"`
	// Ready is false when no backend can serve the request.
	Ready bool `json:"ready"`
	// Degraded is set when public input fell back to the local backend.
	Degraded bool `json:"degraded,omitempty"`
	// Private is set when the verdict was private.
	Private bool `json:"private,omitempty"`
	// Reason explains the decision. It never quotes request input.
	Reason string `json:"reason"`
}

// String returns a one-line summary of the selection.
func (s Selection) String() string {
	state := "ready"
	switch {
	case !s.Ready:
		state = "not ready"
	case s.Degraded:
		state = "degraded"
	}
	return fmt.Sprintf("%s (%s): %s", s.Kind, state, s.Reason)
}

// ============================================================================
// STATUS
// ============================================================================

// BackendStatus describes one backend for health endpoints.
type BackendStatus struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	Configured bool   `json:"configured"`
	Available  bool   `json:"available"`
	Error      string `json:"error,omitempty"`
}

// StatusReport describes both backends and the routing options.
type StatusReport struct {
	Mode     Mode          `json:"mode"`
	Paranoid bool          `json:"paranoid"`
	Local    BackendStatus `json:"local"`
	Remote   BackendStatus `json:"remote"`
}

// Ready reports whether at least one backend can serve public input.
func (r StatusReport) Ready() bool {
	return r.Local.Available || (r.Remote.Available && !r.Paranoid && r.Mode != ModeLocal)
}
