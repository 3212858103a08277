// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the remote model backend: a client for any
// OpenAI-compatible chat completions API.
//
// # Key Types
//
//   - Client: HTTP client with retry, backoff and a client-side rate limiter
//   - ChatRequest: Request structure, with response_format for JSON output
//   - Backend: router.Backend adapter
//
// # Usage
//
//	client := cloud.NewClient(cloud.Config{APIKey: key, Model: "gpt-3.5-turbo"})
//	remote := cloud.NewBackend(client)
//	text, err := remote.Complete(ctx, messages, model.JSONOptions(512))
//
// # Security
//
// API keys are never logged; a SHA-256 fingerprint identifies them instead.
// Request and response bodies are never logged. Only public input reaches
// this package: the router keeps private input on the local backend.
package cloud
