// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the router, the
// interpreter and the dispatcher.
package model

import (
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat message sent to a model backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// EstimateTokens gives a rough token count for a message list.
// Uses the approximation of ~4 characters per token.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
	}
	return total
}

// Preview returns a rune-safe truncation of s.
func Preview(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen || maxLen < 4 {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// COMPLETION OPTIONS
// =============================================================================

// Format is the response shape a caller expects from a backend.
type Format string

const (
	// FormatText is free text, used for direct question answering.
	FormatText Format = "text"
	// FormatJSON asks the backend for a JSON object, used for interpretation.
	FormatJSON Format = "json"
)

// CompletionOptions are per-call settings passed to a backend.
type CompletionOptions struct {
	Format      Format
	Temperature float64
	MaxTokens   int

	// Purpose labels the call in logs and telemetry ("interpret", "answer").
	Purpose string
}

// TextOptions returns options for free-text answers.
func TextOptions(maxTokens int) CompletionOptions {
	return CompletionOptions{Format: FormatText, Temperature: 0.2, MaxTokens: maxTokens, Purpose: "answer"}
}

// JSONOptions returns options for structured interpretation calls.
func JSONOptions(maxTokens int) CompletionOptions {
	return CompletionOptions{Format: FormatJSON, Temperature: 0, MaxTokens: maxTokens, Purpose: "interpret"}
}
