// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API
// and the local model backend built on it.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest: Request structure for chat completions, with optional
//     "format": "json" for structured output
//   - Backend: router.Backend adapter; this is the only backend private
//     input may reach
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://127.0.0.1:11434",
//	    DefaultModel: "llama2",
//	})
//	local := ollama.NewBackend(client)
//	text, err := local.Complete(ctx, messages, model.JSONOptions(512))
//
// Client errors are mapped onto router.BackendError: a missing runtime or
// model is unavailable, a timeout or bad response is a failed call.
package ollama
