// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router chooses the model backend that may see a request and
// exposes one completion call over whichever backend was chosen.
//
// Routing order for each request:
// private -> Local only; paranoid/local mode -> Local; otherwise Remote if
// configured and reachable, else Local in degraded mode; else not ready.
//
// # Key Types
//
//   - ModelRouter: explicitly constructed router holding both backends
//   - Backend: interface implemented by the ollama and cloud adapters
//   - Selection: per-request decision (kind, ready, degraded, reason)
//   - BackendError: unavailable vs failed, matched with errors.Is
//   - ConfigurationError: no backend can serve the request
//
// # Security
//
// SECURITY CRITICAL: the privacy verdict is checked before anything else.
// Private input is never offered to the remote backend, and Complete refuses
// a private selection that names a remote backend.
//
// # Usage
//
//	r := router.New(localBackend, remoteBackend, router.Options{Mode: router.ModeAuto})
//	sel := r.Select(ctx, verdict)
//	if !sel.Ready {
//	    return &router.ConfigurationError{Reason: sel.Reason}
//	}
//	text, err := r.Complete(ctx, sel, messages, model.JSONOptions(512))
package router
