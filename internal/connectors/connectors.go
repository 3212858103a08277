// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/storage"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

// Mailer sends or queues an email.
type Mailer interface {
	Send(ctx context.Context, email Email) (*EmailReceipt, error)
}

// Scheduler books a calendar event.
type Scheduler interface {
	Schedule(ctx context.Context, meeting Meeting) (*ScheduledEvent, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*SearchResults, error)
}

// FoodOrderer validates and records a food order from a model payload.
type FoodOrderer interface {
	Order(ctx context.Context, payload model.Payload) (*OrderReceipt, error)
}

// DocumentLoader reads the text of one referenced document. index is the
// 1-based position used in user-facing messages.
type DocumentLoader interface {
	Load(ctx context.Context, ref DocumentRef, index int) (*Document, error)
}

// Answerer answers a question, optionally grounded in document texts.
type Answerer interface {
	Answer(ctx context.Context, question string, documents []string) (*Answer, error)
}

// Set is the capability set handed to the dispatcher. A nil member makes
// the matching action fail with a connector error.
type Set struct {
	Mail      Mailer
	Calendar  Scheduler
	Search    Searcher
	Food      FoodOrderer
	Documents DocumentLoader
	Answers   Answerer
}

// =============================================================================
// MAIL
// =============================================================================

// Email is an outgoing message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// EmailReceipt is the result of queuing an email.
type EmailReceipt struct {
	ID       string    `json:"id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	Status   string    `json:"status"`
	QueuedAt time.Time `json:"queued_at"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// Meeting is a request to book an event.
type Meeting struct {
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
}

// ScheduledEvent is a booked event.
type ScheduledEvent struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	TimeZone    string   `json:"time_zone"`
	Attendees   []string `json:"attendees"`
	Status      string   `json:"status"`
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResults is the outcome of one search.
type SearchResults struct {
	Query   string         `json:"query"`
	Source  string         `json:"source"`
	Results []SearchResult `json:"results"`
}

// =============================================================================
// FOOD
// =============================================================================

// OrderReceipt is the outcome of a food order.
type OrderReceipt struct {
	ID       string              `json:"id"`
	Status   string              `json:"status"`
	Items    []storage.OrderItem `json:"items"`
	Total    *float64            `json:"total,omitempty"`
	Currency string              `json:"currency"`
	Message  string              `json:"message,omitempty"`
}

// =============================================================================
// DOCUMENTS AND ANSWERS
// =============================================================================

// DocumentRef points at a document by workspace path or inline base64 data.
type DocumentRef struct {
	Path string
	Data string
	Name string
}

// DocumentRefFrom reads a reference from a payload value: a path string or
// an object with "path", "data" and "name". It reports false for any other
// shape. An empty reference is returned as-is for the loader to reject.
func DocumentRefFrom(v any) (DocumentRef, bool) {
	switch t := v.(type) {
	case string:
		return DocumentRef{Path: strings.TrimSpace(t)}, true
	case map[string]any:
		p := model.Payload(t)
		return DocumentRef{Path: p.String("path"), Data: p.String("data"), Name: p.String("name")}, true
	}
	return DocumentRef{}, false
}

// Document is a loaded document.
type Document struct {
	Name string
	Text string
}

// Answer is a model answer.
type Answer struct {
	Text     string `json:"answer"`
	Backend  string `json:"backend,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	Private  bool   `json:"private,omitempty"`
}
