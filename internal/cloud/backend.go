// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// BackendName is the name reported for the remote backend.
const BackendName = "openai"

// Backend adapts a Client to router.Backend.
type Backend struct {
	client *Client
}

var _ router.Backend = (*Backend)(nil)

// NewBackend wraps client.
func NewBackend(client *Client) *Backend {
	return &Backend{client: client}
}

// Kind returns router.BackendRemote.
func (b *Backend) Kind() router.BackendKind { return router.BackendRemote }

// Name returns "openai".
func (b *Backend) Name() string { return BackendName }

// Model returns the configured model.
func (b *Backend) Model() string { return b.client.Model() }

// Configured reports whether an API key is set.
func (b *Backend) Configured() bool { return b.client != nil && b.client.IsConfigured() }

// Ping checks that the API is reachable and accepts the key.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx); err != nil {
		return toBackendError(err)
	}
	return nil
}

// Complete runs one chat completion. JSON format requests ask for a JSON
// object response.
func (b *Backend) Complete(ctx context.Context, messages []model.Message, opts model.CompletionOptions) (string, error) {
	req := ChatRequest{
		Messages:    make([]ChatMessage, len(messages)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = ChatMessage{Role: m.Role.String(), Content: m.Content}
	}
	if opts.Format == model.FormatJSON {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	resp, err := b.client.Chat(ctx, req)
	if err != nil {
		return "", toBackendError(err)
	}
	return resp.GetContent(), nil
}

// toBackendError maps client errors onto the router taxonomy. Provider
// error messages are dropped: they can echo key fragments.
func toBackendError(err error) error {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return router.Unavailable(BackendName, "API key not configured", nil)
	case errors.Is(err, ErrAuthFailed):
		return router.Unavailable(BackendName, "API key rejected", nil)
	case errors.Is(err, ErrInsufficientCredits):
		return router.Unavailable(BackendName, "quota exhausted", nil)
	case errors.Is(err, ErrModelNotFound):
		return router.Unavailable(BackendName, "model not found", nil)
	case errors.Is(err, ErrRateLimited):
		return router.Failed(BackendName, "rate limited", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return router.Failed(BackendName, "request timed out", nil)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return router.Failed(BackendName, fmt.Sprintf("HTTP %d", apiErr.Status), nil)
	}
	return router.Failed(BackendName, "request failed", err)
}
