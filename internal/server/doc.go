// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the assistant over HTTP.
//
// # Endpoints
//
//   - POST /assistant/command   - Interpret and run a prompt
//   - GET  /health              - Backend probes and counters
//   - GET  /status/local_model  - Local model availability and last call
//
// # Middleware
//
// Requests pass through request IDs, panic recovery, security headers,
// request logging, a per-client token bucket, and optional bearer token
// auth with an IP allowlist. /health is never behind auth.
//
// Every body the server writes has been through the privacy sanitizer.
//
// # Usage
//
//	srv := server.New(service, modelRouter, server.Config{Port: 8787})
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
