// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides diagnostics for rigrun-assist.
//
// Routing decisions, backend calls, dispatched actions and clarifications are
// counted through the OpenTelemetry metric API, and the pipeline stages run
// inside OpenTelemetry spans. Exporting is left to the host process: when
// telemetry is enabled the global providers are used, otherwise everything is
// a no-op.
//
// # Key Types
//
//   - Provider: tracer, meter and instruments
//   - Recorder: counters plus the last backend call per kind, served by
//     /status/local_model
//   - CallInfo: one backend call (backend, purpose, duration, error)
//
// # Usage
//
//	rec := telemetry.NewRecorder(telemetry.NewProvider(telemetry.Config{Enabled: true}))
//	rec.RecordCall(ctx, telemetry.CallInfo{Backend: "ollama", Kind: "local", DurationMs: 420})
//	last, ok := rec.LastCall("local")
//
// # Security
//
// Nothing derived from request input is recorded. Span attributes pass
// through SafeAttributes, which drops keys that may carry user content.
package telemetry
