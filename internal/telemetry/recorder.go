// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// CALL INFO
// =============================================================================

// CallInfo describes one model backend call. It never carries request input.
type CallInfo struct {
	Backend    string    `json:"backend"`
	Kind       string    `json:"kind"`
	Purpose    string    `json:"purpose,omitempty"`
	Degraded   bool      `json:"degraded"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// OK reports whether the call succeeded.
func (c CallInfo) OK() bool {
	return c.Error == ""
}

// Snapshot is a point-in-time copy of the recorder counters.
type Snapshot struct {
	LocalCalls     int64 `json:"local_calls"`
	RemoteCalls    int64 `json:"remote_calls"`
	FailedCalls    int64 `json:"failed_calls"`
	Actions        int64 `json:"actions"`
	FailedActions  int64 `json:"failed_actions"`
	Clarifications int64 `json:"clarifications"`
	NotReady       int64 `json:"not_ready"`

	LastCall *CallInfo `json:"last_call,omitempty"`
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder keeps process-level diagnostics: counters and the last call per
// backend kind. It is safe for concurrent use and a nil *Recorder is a no-op.
type Recorder struct {
	mu       sync.RWMutex
	provider *Provider
	counts   Snapshot
	last     map[string]CallInfo
	lastAny  *CallInfo
}

// NewRecorder creates a recorder that also forwards to provider.
// A nil provider disables OpenTelemetry output.
func NewRecorder(provider *Provider) *Recorder {
	if provider == nil {
		provider = NewProvider(Config{})
	}
	return &Recorder{
		provider: provider,
		last:     make(map[string]CallInfo),
	}
}

// Provider returns the underlying OpenTelemetry provider.
func (r *Recorder) Provider() *Provider {
	if r == nil {
		return nil
	}
	return r.provider
}

// RecordCall stores info as the last call for its kind and updates counters.
func (r *Recorder) RecordCall(ctx context.Context, info CallInfo) {
	if r == nil {
		return
	}
	if info.At.IsZero() {
		info.At = time.Now()
	}

	r.mu.Lock()
	switch info.Kind {
	case "local":
		r.counts.LocalCalls++
	case "remote":
		r.counts.RemoteCalls++
	}
	if !info.OK() {
		r.counts.FailedCalls++
	}
	r.last[info.Kind] = info
	copied := info
	r.lastAny = &copied
	r.mu.Unlock()

	outcome := "ok"
	if !info.OK() {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend.kind", info.Kind),
		attribute.String("backend.name", info.Backend),
		attribute.String("purpose", info.Purpose),
		attribute.String("outcome", outcome),
	)
	r.provider.backendCalls.Add(ctx, 1, attrs)
	r.provider.backendDuration.Record(ctx, float64(info.DurationMs), attrs)
}

// RecordSelection counts a routing decision.
func (r *Recorder) RecordSelection(ctx context.Context, kind string, private, degraded, ready bool) {
	if r == nil {
		return
	}
	if !ready {
		r.mu.Lock()
		r.counts.NotReady++
		r.mu.Unlock()
	}
	r.provider.routingCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend.kind", kind),
		attribute.Bool("private", private),
		attribute.Bool("degraded", degraded),
		attribute.Bool("ready", ready),
	))
}

// RecordAction counts one dispatched action and its status.
func (r *Recorder) RecordAction(ctx context.Context, action, status string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.counts.Actions++
	if status != "ok" {
		r.counts.FailedActions++
	}
	r.mu.Unlock()
	r.provider.actionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

// RecordClarifications counts clarifications returned for one command.
func (r *Recorder) RecordClarifications(ctx context.Context, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.mu.Lock()
	r.counts.Clarifications += int64(n)
	r.mu.Unlock()
	r.provider.clarifyCounter.Add(ctx, int64(n))
}

// LastCall returns the last call recorded for kind, or for any kind when
// kind is empty.
func (r *Recorder) LastCall(kind string) (CallInfo, bool) {
	if r == nil {
		return CallInfo{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if kind == "" {
		if r.lastAny == nil {
			return CallInfo{}, false
		}
		return *r.lastAny, true
	}
	info, ok := r.last[kind]
	return info, ok
}

// Snapshot returns a copy of the counters and the last call.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.counts
	if r.lastAny != nil {
		last := *r.lastAny
		s.LastCall = &last
	}
	return s
}
