// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"fmt"
	"strings"

	"github.com/jeranaias/rigrun-assist/internal/model"
)

// DefaultTimezone is assumed for meeting times given without a zone.
const DefaultTimezone = "America/Chicago"

// payloadFields describes the inputs of each action for the system prompt.
var payloadFields = map[model.ActionKind]string{
	model.ActionSendEmail:       "to, subject, body (write short professional text when the body is missing)",
	model.ActionScheduleMeeting: "attendees (list), start_time, end_time or duration_minutes, title, description (assume %s when no timezone is given)",
	model.ActionSearchWeb:       "query, num_results",
	model.ActionOrderPizza:      "customer (first_name, last_name, email, phone), address (street, city, region, postal_code), items (list with code and quantity), optional special_instructions, optional payment",
	model.ActionAnswerQuestion:  "question, optional context",
	model.ActionPDFQuestion:     `question plus documents (list). Each document has either "path" that the server can read or "data" with base64 content, and an optional "name"`,
}

// systemPrompt builds the planner instructions. Private prompts run on the
// local backend, which is told it runs on the user's machine.
func systemPrompt(timezone string, private bool) string {
	var b strings.Builder
	if private {
		b.WriteString("You are a command planner for a privacy-preserving assistant running entirely on the user's machine. ")
	} else {
		b.WriteString("You are a command planner for a personal assistant. ")
	}
	b.WriteString("Translate the user's instruction into plain JSON of the form ")
	b.WriteString(`{"actions": [{"action": "...", "payload": {...}}], "clarifications": [{"action": "...", "field": "...", "prompt": "..."}]}. `)
	b.WriteString("Actions run in the order listed.\n")

	names := make([]string, 0, len(payloadFields))
	for _, kind := range model.AllActionKinds() {
		names = append(names, kind.String())
	}
	fmt.Fprintf(&b, "Allowed actions: %s.\n", strings.Join(names, ", "))
	b.WriteString("The payload is a simple object of inputs for that action:\n")
	for _, kind := range model.AllActionKinds() {
		fields := payloadFields[kind]
		if kind == model.ActionScheduleMeeting {
			fields = fmt.Sprintf(fields, timezone)
		}
		fmt.Fprintf(&b, "- %s: %s\n", kind, fields)
	}
	b.WriteString("When required information is missing, add an entry to \"clarifications\" naming the action, the field and a prompt that asks the user for it.\n")
	b.WriteString("If you see placeholders like [EMAIL_0], keep them exactly as they are.\n")
	b.WriteString("Do not add commentary outside the JSON.")
	return b.String()
}

// correctivePrompt asks the model to fix its previous reply.
func correctivePrompt(problem error) string {
	return fmt.Sprintf("Your previous reply could not be used: %v. "+
		`Reply again with only a JSON object of the form {"actions": [...], "clarifications": [...]} and nothing else.`,
		problem)
}
