// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/util"
)

// maxActionNameWidth bounds an unrecognized action name echoed back in a
// clarification.
const maxActionNameWidth = 40

// =============================================================================
// OUTPUT ERRORS
// =============================================================================

// OutputError reports model output that could not be turned into an
// interpretation. Reason is short enough to quote back to the model.
type OutputError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	return "malformed model output: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *OutputError) Unwrap() error {
	return e.Cause
}

var errNoSteps = &OutputError{Reason: "the reply contains no actions and no clarifications"}

// =============================================================================
// DECODING
// =============================================================================

// stripFences removes a Markdown code fence around a reply.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.Trim(text, "`")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		// First line is the language tag, possibly empty.
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

// decode parses raw as JSON. When the reply wraps JSON in prose, the span
// from the first opening brace to the last closing brace is tried.
func decode(raw string) (any, error) {
	text := stripFences(raw)
	var doc any
	err := json.Unmarshal([]byte(text), &doc)
	if err == nil {
		return doc, nil
	}
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(text[start:end+1]), &doc) == nil {
			return doc, nil
		}
	}
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return nil, &OutputError{Reason: fmt.Sprintf("invalid JSON at offset %d: %v", syntax.Offset, syntax), Cause: err}
	}
	return nil, &OutputError{Reason: "invalid JSON: " + err.Error(), Cause: err}
}

// parse decodes, validates and normalizes one model reply.
func parse(schema *jsonschema.Schema, raw string) ([]model.Action, []model.Clarification, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, nil, &OutputError{Reason: describeValidation(err), Cause: err}
	}
	actions, clarifications := normalize(doc)
	if len(actions) == 0 && len(clarifications) == 0 {
		return nil, nil, errNoSteps
	}
	return actions, clarifications, nil
}

// describeValidation turns a schema error into a short reason without the
// schema location.
func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return "the reply does not match the expected JSON shape"
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("the reply does not match the expected JSON shape (at %s: %s)", loc, leaf.Message)
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// normalize maps a validated document onto actions and clarifications.
// Unknown or missing action names become clarifications so a single bad
// entry never discards the rest of the plan.
func normalize(doc any) ([]model.Action, []model.Clarification) {
	var items, clarify []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["actions"].([]any); ok {
			items = list
		} else if _, ok := v["action"].(string); ok {
			items = []any{v}
		}
		clarify, _ = v["clarifications"].([]any)
	}

	var actions []model.Action
	var clarifications []model.Clarification
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			clarifications = append(clarifications, missingAction(nil))
			continue
		}
		name, _ := entry["action"].(string)
		payload := entryPayload(entry)
		if strings.TrimSpace(name) == "" {
			clarifications = append(clarifications, missingAction(payload))
			continue
		}
		kind, known := model.ParseActionKind(name)
		if !known {
			shown := util.TruncateWidth(util.SingleLine(strings.TrimSpace(name)), maxActionNameWidth)
			clarifications = append(clarifications, model.Clarification{
				Action:  shown,
				Field:   "action",
				Prompt:  fmt.Sprintf("Action %q not understood. Supported actions: %s.", shown, supportedActions()),
				Payload: payload,
			})
			continue
		}
		actions = append(actions, model.NewAction(kind, payload))
	}

	for _, item := range clarify {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		prompt, _ := entry["prompt"].(string)
		if strings.TrimSpace(prompt) == "" {
			continue
		}
		c := model.Clarification{Prompt: strings.TrimSpace(prompt)}
		c.Action, _ = entry["action"].(string)
		c.Field, _ = entry["field"].(string)
		c.Payload, _ = entry["payload"].(map[string]any)
		clarifications = append(clarifications, c)
	}
	return actions, clarifications
}

// entryPayload returns the payload object of an entry. Models sometimes
// flatten the inputs next to "action"; those keys are collected instead.
func entryPayload(entry map[string]any) model.Payload {
	if p, ok := entry["payload"].(map[string]any); ok {
		return model.Payload(p)
	}
	p := model.Payload{}
	for k, v := range entry {
		switch k {
		case "action", "payload", "clarifications":
			continue
		}
		p[k] = v
	}
	return p
}

func missingAction(payload model.Payload) model.Clarification {
	return model.Clarification{
		Field:   "action",
		Prompt:  "Action missing: say which of " + supportedActions() + " to run.",
		Payload: payload,
	}
}

func supportedActions() string {
	kinds := model.AllActionKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
