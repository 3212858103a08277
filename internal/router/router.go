// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

var errNotConfigured = errors.New("not configured")

// ModelRouter chooses a backend for each request and calls it.
// It holds no request state and is safe for concurrent use.
type ModelRouter struct {
	local  Backend
	remote Backend
	opts   Options
	logger *slog.Logger
}

// New creates a router. Either backend may be nil.
func New(local, remote Backend, opts Options) *ModelRouter {
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelRouter{
		local:  local,
		remote: remote,
		opts:   opts,
		logger: logger.With("component", "router"),
	}
}

// Options returns the routing options.
func (r *ModelRouter) Options() Options {
	return r.opts
}

// Recorder returns the telemetry recorder, which may be nil.
func (r *ModelRouter) Recorder() *telemetry.Recorder {
	return r.opts.Recorder
}

// ============================================================================
// SELECTION
// ============================================================================

// Select chooses a backend for input with the given verdict.
//
// SECURITY CRITICAL: the privacy check is first. Private input goes to the
// local backend or nowhere; the remote backend is never considered.
func (r *ModelRouter) Select(ctx context.Context, verdict privacy.Verdict) Selection {
	sel := r.selectBackend(ctx, verdict)

	r.logger.Info("ROUTING",
		"backend", sel.Kind.String(),
		"name", sel.Name,
		"ready", sel.Ready,
		"degraded", sel.Degraded,
		"private", sel.Private,
		"categories", categoryNames(verdict),
	)
	r.opts.Recorder.RecordSelection(ctx, sel.Kind.String(), sel.Private, sel.Degraded, sel.Ready)
	return sel
}

func (r *ModelRouter) selectBackend(ctx context.Context, verdict privacy.Verdict) Selection {
	// 1. Private input never leaves the machine.
	if verdict.IsPrivate {
		reason := fmt.Sprintf("private input (%s) stays on the local backend", strings.Join(categoryNames(verdict), ", "))
		if err := r.probe(ctx, r.local); err != nil {
			return Selection{
				Kind:    BackendLocal,
				Private: true,
				Reason:  fmt.Sprintf("%s, but the local backend is unavailable: %v", reason, err),
			}
		}
		return r.localSelection(true, false, reason)
	}

	// 2. Paranoid and local modes block the remote backend.
	if r.opts.ShouldUseLocal() {
		reason := "routing mode is local"
		if r.opts.Paranoid {
			reason = "paranoid mode blocks remote backends"
		}
		if err := r.probe(ctx, r.local); err != nil {
			return Selection{Kind: BackendLocal, Reason: fmt.Sprintf("%s, but the local backend is unavailable: %v", reason, err)}
		}
		return r.localSelection(false, false, reason)
	}

	// 3. Public input prefers the remote backend.
	remoteErr := r.probe(ctx, r.remote)
	if remoteErr == nil {
		reason := "public input routed to the remote backend"
		if r.opts.Mode == ModeRemote {
			reason = "routing mode is remote"
		}
		return Selection{
			Kind:    BackendRemote,
			Backend: r.remote,
			Name:    r.remote.Name(),
			Ready:   true,
			Reason:  reason,
		}
	}

	// 4. Degrade to the local backend.
	localErr := r.probe(ctx, r.local)
	if localErr == nil {
		return r.localSelection(false, true, fmt.Sprintf("remote backend unavailable (%v); using the local backend", remoteErr))
	}

	return Selection{
		Kind:   BackendLocal,
		Reason: fmt.Sprintf("no model backend available: remote: %v; local: %v", remoteErr, localErr),
	}
}

func (r *ModelRouter) localSelection(private, degraded bool, reason string) Selection {
	return Selection{
		Kind:     BackendLocal,
		Backend:  r.local,
		Name:     r.local.Name(),
		Ready:    true,
		Degraded: degraded,
		Private:  private,
		Reason:   reason,
	}
}

// probe checks that b is configured and answers a ping within ProbeTimeout.
func (r *ModelRouter) probe(ctx context.Context, b Backend) error {
	if b == nil || !b.Configured() {
		return errNotConfigured
	}
	pctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	defer cancel()
	if err := b.Ping(pctx); err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.Message != "" {
			return errors.New(be.Message)
		}
		return err
	}
	return nil
}

// ============================================================================
// COMPLETION
// ============================================================================

// Complete sends messages to the selected backend.
//
// Returns an error matching ErrBackendUnavailable when the selection is not
// ready, and ErrBackendFailed when the call fails or returns nothing.
func (r *ModelRouter) Complete(ctx context.Context, sel Selection, messages []model.Message, opts model.CompletionOptions) (string, error) {
	if !sel.Ready || sel.Backend == nil {
		return "", Unavailable(sel.Kind.String(), sel.Reason, nil)
	}
	if sel.Private && !sel.Backend.Kind().IsLocal() {
		return "", Unavailable(sel.Backend.Name(), "private input cannot be sent to a remote backend", nil)
	}

	ctx, span := r.opts.Recorder.Provider().StartSpan(ctx, "router.complete", map[string]any{
		"backend.kind": sel.Kind.String(),
		"backend.name": sel.Name,
		"purpose":      opts.Purpose,
		"degraded":     sel.Degraded,
	})

	start := time.Now()
	text, err := sel.Backend.Complete(ctx, messages, opts)
	if err == nil && strings.TrimSpace(text) == "" {
		err = Failed(sel.Backend.Name(), "empty response", nil)
	}
	if err != nil {
		var be *BackendError
		if !errors.As(err, &be) {
			err = Failed(sel.Backend.Name(), "call failed", err)
		}
	}
	elapsed := time.Since(start)

	info := telemetry.CallInfo{
		Backend:    sel.Backend.Name(),
		Kind:       sel.Kind.String(),
		Purpose:    opts.Purpose,
		Degraded:   sel.Degraded,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		info.Error = callErrorSummary(err)
	}
	r.opts.Recorder.RecordCall(ctx, info)
	telemetry.EndSpan(span, err)

	r.logger.Info("BACKEND_CALL",
		"backend", sel.Backend.Name(),
		"purpose", opts.Purpose,
		"messages", len(messages),
		"est_tokens", model.EstimateTokens(messages),
		"duration_ms", elapsed.Milliseconds(),
		"ok", err == nil,
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// CompleteFor selects a backend for verdict and completes with it.
func (r *ModelRouter) CompleteFor(ctx context.Context, verdict privacy.Verdict, messages []model.Message, opts model.CompletionOptions) (string, Selection, error) {
	sel := r.Select(ctx, verdict)
	text, err := r.Complete(ctx, sel, messages, opts)
	return text, sel, err
}

// callErrorSummary keeps the error type and message of a BackendError
// without its cause, which may quote a response body.
func callErrorSummary(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Type.String() + ": " + be.Message
		}
		return be.Type.String()
	}
	return "error"
}

// ============================================================================
// STATUS
// ============================================================================

// Status probes both backends.
func (r *ModelRouter) Status(ctx context.Context) StatusReport {
	return StatusReport{
		Mode:     r.opts.Mode,
		Paranoid: r.opts.Paranoid,
		Local:    r.backendStatus(ctx, BackendLocal, r.local),
		Remote:   r.backendStatus(ctx, BackendRemote, r.remote),
	}
}

func (r *ModelRouter) backendStatus(ctx context.Context, kind BackendKind, b Backend) BackendStatus {
	st := BackendStatus{Kind: kind.String()}
	if b == nil {
		st.Error = errNotConfigured.Error()
		return st
	}
	st.Name = b.Name()
	if m, ok := b.(interface{ Model() string }); ok {
		st.Model = m.Model()
	}
	st.Configured = b.Configured()
	if err := r.probe(ctx, b); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Available = true
	return st
}

func categoryNames(v privacy.Verdict) []string {
	if len(v.Categories) == 0 && v.IsPrivate {
		// Inherited from the request rather than matched in this text.
		return []string{"request"}
	}
	names := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		names[i] = c.String()
	}
	return names
}
