// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
)

var (
	searchQuery   = regexp.MustCompile(`(?i)(?:search|look up|find)(?: for)?\s+(.*)`)
	subjectPhrase = regexp.MustCompile(`(?i)(?:subject|about)\s*[:\-]\s*(.+)`)
	bodyPhrase    = regexp.MustCompile(`(?is)(?:body|message|saying|content)\s*[:\-]\s*(.+)`)
)

// heuristic guesses a single action from keywords. It is used only when no
// backend could produce an interpretation. A prompt that is itself a JSON
// plan is taken as given.
func heuristic(schema *jsonschema.Schema, prompt string) ([]model.Action, []model.Clarification) {
	text := strings.TrimSpace(prompt)
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		if actions, clarifications, err := parse(schema, text); err == nil {
			return actions, clarifications
		}
	}

	lowered := strings.ToLower(text)
	act := func(kind model.ActionKind, p model.Payload) []model.Action {
		return []model.Action{model.NewAction(kind, p)}
	}

	switch {
	case strings.Contains(lowered, "pizza"):
		return act(model.ActionOrderPizza, nil), nil

	case strings.Contains(lowered, "pdf") &&
		(strings.Contains(lowered, "question") || strings.Contains(lowered, "ask")):
		return act(model.ActionPDFQuestion, model.Payload{"question": text, "documents": []any{}}), nil

	case strings.Contains(lowered, "search") || strings.Contains(lowered, "look up"):
		query := text
		if m := searchQuery.FindStringSubmatch(text); m != nil {
			query = strings.TrimSpace(m[1])
		}
		return act(model.ActionSearchWeb, model.Payload{"query": query}), nil

	case strings.Contains(lowered, "meeting") || strings.Contains(lowered, "schedule"):
		return act(model.ActionScheduleMeeting, nil), nil

	case strings.Contains(lowered, "email") || strings.Contains(lowered, "mail") || privacy.EmailPattern.MatchString(text):
		p := model.Payload{
			"to":      privacy.EmailPattern.FindString(text),
			"subject": "",
			"body":    text,
		}
		if m := subjectPhrase.FindStringSubmatch(text); m != nil {
			p["subject"] = strings.TrimSpace(m[1])
		}
		if m := bodyPhrase.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
			p["body"] = strings.TrimSpace(m[1])
		}
		return act(model.ActionSendEmail, p), nil
	}

	return act(model.ActionAnswerQuestion, model.Payload{"question": text}), nil
}
