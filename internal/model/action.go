// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// ACTION KIND
// =============================================================================

// ActionKind is the closed set of skills the assistant can run.
type ActionKind int

const (
	// ActionUnknown marks a name the model produced that is not a skill.
	ActionUnknown ActionKind = iota
	ActionSendEmail
	ActionScheduleMeeting
	ActionSearchWeb
	ActionOrderPizza
	ActionPDFQuestion
	ActionAnswerQuestion
)

var actionNames = map[ActionKind]string{
	ActionSendEmail:       "send_email",
	ActionScheduleMeeting: "schedule_meeting",
	ActionSearchWeb:       "search_web",
	ActionOrderPizza:      "order_pizza",
	ActionPDFQuestion:     "pdf_question",
	ActionAnswerQuestion:  "answer_question",
}

// AllActionKinds returns every known kind in declaration order.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionSendEmail,
		ActionScheduleMeeting,
		ActionSearchWeb,
		ActionOrderPizza,
		ActionPDFQuestion,
		ActionAnswerQuestion,
	}
}

// String returns the wire name of the kind.
func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsKnown reports whether k is one of the skills.
func (k ActionKind) IsKnown() bool {
	_, ok := actionNames[k]
	return ok
}

// MarshalJSON encodes the kind as its wire name.
func (k ActionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a wire name. Unrecognized names decode to ActionUnknown.
func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("action kind: %w", err)
	}
	*k, _ = ParseActionKind(name)
	return nil
}

// ParseActionKind maps a wire name to a kind. Matching ignores case and
// surrounding space.
func ParseActionKind(name string) (ActionKind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for kind, wire := range actionNames {
		if wire == n {
			return kind, true
		}
	}
	return ActionUnknown, false
}

// =============================================================================
// ACTIONS AND CLARIFICATIONS
// =============================================================================

// Action is one step of an interpreted command.
type Action struct {
	Kind    ActionKind `json:"action"`
	Payload Payload    `json:"payload"`
}

// NewAction creates an action with a non-nil payload.
func NewAction(kind ActionKind, payload Payload) Action {
	if payload == nil {
		payload = Payload{}
	}
	return Action{Kind: kind, Payload: payload}
}

// Clarification asks the user for information needed to continue.
// Action is a wire name so unrecognized actions can be reported as given.
type Clarification struct {
	Action  string         `json:"action,omitempty"`
	Field   string         `json:"field,omitempty"`
	Prompt  string         `json:"prompt"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Interpretation is the normalized output of the interpreter.
type Interpretation struct {
	Actions        []Action        `json:"actions"`
	Clarifications []Clarification `json:"clarifications"`

	// Backend names the backend that produced the interpretation.
	Backend string `json:"backend,omitempty"`
	// Degraded is set when the structured output could not be used and a
	// best-effort fallback was produced instead.
	Degraded bool `json:"degraded,omitempty"`
	// Private is set when the prompt was classified private. Follow-up model
	// calls made for this interpretation stay on the local backend.
	Private bool `json:"private,omitempty"`
	// FallbackAnswer holds the unparsed model reply when no plan could be
	// built. The answer_question action uses it instead of another call.
	FallbackAnswer string `json:"-"`
	// Notes carry routing and fallback remarks for the caller. They never
	// quote the prompt.
	Notes []string `json:"notes,omitempty"`
}

// =============================================================================
// DISPATCH RESULTS
// =============================================================================

// EntryStatus is the outcome of one dispatched action.
type EntryStatus string

const (
	StatusOK     EntryStatus = "ok"
	StatusFailed EntryStatus = "failed"
)

// DispatchEntry is the per-action record returned to the caller.
type DispatchEntry struct {
	Action  string         `json:"action"`
	Status  EntryStatus    `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CommandResponse is the answer to one command.
type CommandResponse struct {
	RequestID      string          `json:"request_id,omitempty"`
	Actions        []DispatchEntry `json:"actions"`
	Clarifications []Clarification `json:"clarifications"`
	Backend        string          `json:"backend,omitempty"`
	Degraded       bool            `json:"degraded,omitempty"`
	Notes          []string        `json:"notes,omitempty"`
}

// NewCommandResponse returns a response with empty, non-nil lists so the
// JSON shape is always {"actions": [], "clarifications": []}.
func NewCommandResponse() *CommandResponse {
	return &CommandResponse{
		Actions:        []DispatchEntry{},
		Clarifications: []Clarification{},
	}
}

// Succeeded returns the entries with StatusOK.
func (r *CommandResponse) Succeeded() []DispatchEntry {
	var out []DispatchEntry
	for _, e := range r.Actions {
		if e.Status == StatusOK {
			out = append(out, e)
		}
	}
	return out
}
