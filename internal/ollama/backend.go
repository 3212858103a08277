// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// BackendName is the name reported for the local backend.
const BackendName = "ollama"

// Backend adapts a Client to router.Backend.
type Backend struct {
	client *Client
}

var _ router.Backend = (*Backend)(nil)

// NewBackend wraps client. A nil client uses the default configuration.
func NewBackend(client *Client) *Backend {
	if client == nil {
		client = NewClient()
	}
	return &Backend{client: client}
}

// Kind returns router.BackendLocal.
func (b *Backend) Kind() router.BackendKind { return router.BackendLocal }

// Name returns "ollama".
func (b *Backend) Name() string { return BackendName }

// Model returns the configured model name.
func (b *Backend) Model() string { return b.client.GetDefaultModel() }

// Client returns the underlying client.
func (b *Backend) Client() *Client { return b.client }

// Configured reports whether a runtime URL and model are set.
func (b *Backend) Configured() bool {
	return b.client.config.BaseURL != "" && b.client.config.DefaultModel != ""
}

// Ping checks that Ollama answers.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.CheckRunning(ctx); err != nil {
		return b.toBackendError(err)
	}
	return nil
}

// Complete runs one chat request. JSON format requests set Ollama's
// "format": "json" so the model output is constrained to JSON.
func (b *Backend) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (string, error) {
	req := ChatRequest{
		Model:    b.client.GetDefaultModel(),
		Messages: make([]Message, len(messages)),
		Options:  &Options{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}
	for i, m := range messages {
		req.Messages[i] = Message{Role: m.Role.String(), Content: m.Content}
	}
	if opts.Format == model.FormatJSON {
		req.Format = "json"
	}

	resp, err := b.client.Chat(ctx, req)
	if err != nil {
		return "", b.toBackendError(err)
	}
	return resp.Message.Content, nil
}

// toBackendError maps client errors onto the router taxonomy.
func (b *Backend) toBackendError(err error) error {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return router.Failed(BackendName, "request failed", err)
	}
	switch ce.Type {
	case ErrTypeNotRunning:
		return router.Unavailable(BackendName, fmt.Sprintf("Ollama is not running at %s", b.client.config.BaseURL), nil)
	case ErrTypeModelNotFound:
		return router.Unavailable(BackendName, fmt.Sprintf("model %q is not installed (run: ollama pull %s)", b.Model(), b.Model()), nil)
	case ErrTypeTimeout:
		return router.Failed(BackendName, "request timed out", nil)
	default:
		return router.Failed(BackendName, ce.Message, ce.Cause)
	}
}
