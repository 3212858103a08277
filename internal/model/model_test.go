// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

// =============================================================================
// ACTION KIND TESTS
// =============================================================================

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		name  string
		want  ActionKind
		known bool
	}{
		{"send_email", ActionSendEmail, true},
		{" Schedule_Meeting ", ActionScheduleMeeting, true},
		{"search_web", ActionSearchWeb, true},
		{"order_pizza", ActionOrderPizza, true},
		{"pdf_question", ActionPDFQuestion, true},
		{"answer_question", ActionAnswerQuestion, true},
		{"book_flight", ActionUnknown, false},
		{"", ActionUnknown, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseActionKind(tc.name)
			if got != tc.want || ok != tc.known {
				t.Errorf("ParseActionKind(%q) = %v, %v; want %v, %v", tc.name, got, ok, tc.want, tc.known)
			}
		})
	}
}

func TestActionKindRoundTrip(t *testing.T) {
	for _, kind := range AllActionKinds() {
		data, err := json.Marshal(kind)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", kind, err)
		}
		var back ActionKind
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back != kind {
			t.Errorf("round trip %v -> %s -> %v", kind, data, back)
		}
	}

	var unknown ActionKind
	if err := json.Unmarshal([]byte(`"fly_to_mars"`), &unknown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unknown != ActionUnknown || unknown.IsKnown() {
		t.Errorf("unknown name decoded to %v", unknown)
	}
}

// =============================================================================
// PAYLOAD TESTS
// =============================================================================

func TestPayloadAccessors(t *testing.T) {
	p := Payload{
		"to":               "  a@b.com ",
		"num_results":      "7",
		"duration_minutes": float64(45),
		"attendees":        "a@b.com, c@d.com",
		"tags":             []any{"x", 3, "y"},
		"customer":         map[string]any{"first_name": "Ann"},
		"empty":            "   ",
	}

	if got := p.String("to"); got != "a@b.com" {
		t.Errorf("String(to) = %q", got)
	}
	if got := p.Int("num_results", 5); got != 7 {
		t.Errorf("Int(num_results) = %d", got)
	}
	if got := p.Int("duration_minutes", 30); got != 45 {
		t.Errorf("Int(duration_minutes) = %d", got)
	}
	if got := p.Int("missing", 30); got != 30 {
		t.Errorf("Int(missing) = %d", got)
	}
	if got := p.StringList("attendees"); !reflect.DeepEqual(got, []string{"a@b.com", "c@d.com"}) {
		t.Errorf("StringList(attendees) = %v", got)
	}
	if got := p.StringList("tags"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("StringList(tags) = %v", got)
	}
	if p.Map("customer")["first_name"] != "Ann" {
		t.Errorf("Map(customer) = %v", p.Map("customer"))
	}
	if p.Has("empty") || p.Has("missing") || !p.Has("to") {
		t.Error("Has() mismatch")
	}
	if got := p.List("to"); len(got) != 1 {
		t.Errorf("List(to) = %v", got)
	}
}

func TestPayloadCloneIsDeep(t *testing.T) {
	p := Payload{"customer": map[string]any{"first_name": "Ann"}, "items": []any{"a"}}
	c := p.Clone()

	c.Map("customer")["first_name"] = "Bob"
	c["items"].([]any)[0] = "b"

	if p.Map("customer")["first_name"] != "Ann" {
		t.Error("Clone shares nested map")
	}
	if p["items"].([]any)[0] != "a" {
		t.Error("Clone shares nested slice")
	}
}

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestCommandResponseShape(t *testing.T) {
	data, err := json.Marshal(NewCommandResponse())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"actions":[],"clarifications":[]}` {
		t.Errorf("empty response = %s", data)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("hello world", 8); got != "hello..." {
		t.Errorf("Preview = %q", got)
	}
	if got := Preview("héllo", 10); got != "héllo" {
		t.Errorf("Preview = %q", got)
	}
}
