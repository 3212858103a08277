// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/connectors"
	"github.com/jeranaias/rigrun-assist/internal/model"
)

// =============================================================================
// ACTION HANDLERS
// =============================================================================

// DocumentSummary names one document used for a pdf_question answer.
type DocumentSummary struct {
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// PDFAnswer is the result of a pdf_question action.
type PDFAnswer struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Documents []DocumentSummary `json:"documents"`
	Backend   string            `json:"backend,omitempty"`
	Private   bool              `json:"private,omitempty"`
}

func (d *Dispatcher) run(ctx context.Context, action model.Action, state *batch) (any, error) {
	p := action.Payload
	if p == nil {
		p = model.Payload{}
	}

	switch action.Kind {
	case model.ActionSendEmail:
		return d.sendEmail(ctx, p, state)
	case model.ActionScheduleMeeting:
		return d.scheduleMeeting(ctx, p, state)
	case model.ActionSearchWeb:
		return d.searchWeb(ctx, p)
	case model.ActionOrderPizza:
		return d.orderPizza(ctx, p, state)
	case model.ActionPDFQuestion:
		return d.pdfQuestion(ctx, p)
	case model.ActionAnswerQuestion:
		return d.answerQuestion(ctx, p, state)
	case model.ActionUnknown:
		return nil, connectors.Failure("dispatch", "unsupported action", nil)
	default:
		return nil, connectors.Failure("dispatch", fmt.Sprintf("unsupported action %s", action.Kind), nil)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, p model.Payload, state *batch) (any, error) {
	if d.set.Mail == nil {
		return nil, notConfigured("mail")
	}
	var to string
	if list := p.StringList("to"); len(list) > 0 {
		to = list[0]
	}
	if !connectors.ValidEmail(to) {
		return nil, connectors.Missing("send_email", "to", "Please provide the recipient's email address.")
	}
	subject := p.String("subject")
	if subject == "" {
		subject = "No subject"
	}
	body := p.String("body")
	if body == "" && state.lastMeeting != nil {
		body = meetingEmailBody(state.lastMeeting)
	}
	if body == "" && state.lastOrder != nil {
		body = orderEmailBody(state.lastOrder)
	}
	return d.set.Mail.Send(ctx, connectors.Email{To: to, Subject: subject, Body: body})
}

func (d *Dispatcher) scheduleMeeting(ctx context.Context, p model.Payload, state *batch) (any, error) {
	if d.set.Calendar == nil {
		return nil, notConfigured("calendar")
	}
	attendees := p.StringList("attendees")
	if len(attendees) == 0 {
		return nil, connectors.Missing("schedule_meeting", "attendees", "Whom should I invite to this meeting? Provide one or more attendee emails.")
	}
	startRaw := p.String("start_time")
	if startRaw == "" {
		return nil, connectors.Missing("schedule_meeting", "start_time", "When should the meeting start? (Include date and time).")
	}
	start, err := connectors.ParseMeetingTime(startRaw, d.loc)
	if err != nil {
		return nil, connectors.Missing("schedule_meeting", "start_time",
			"The start time could not be read. Use an ISO 8601 datetime such as 2024-10-20T12:45:00-05:00.")
	}

	duration := connectors.DefaultMeetingDuration
	switch {
	case p.String("end_time") != "":
		end, err := connectors.ParseMeetingTime(p.String("end_time"), d.loc)
		if err != nil {
			return nil, connectors.Missing("schedule_meeting", "end_time",
				"The end time could not be read. Use an ISO 8601 datetime such as 2024-10-20T13:15:00-05:00.")
		}
		duration = end.Sub(start).Truncate(time.Minute)
	case p.Has("duration_minutes"):
		duration = time.Duration(p.Int("duration_minutes", 0)) * time.Minute
	}

	ev, err := d.set.Calendar.Schedule(ctx, connectors.Meeting{
		Title:       p.String("title"),
		Description: p.String("description"),
		Start:       start,
		Duration:    duration,
		Attendees:   attendees,
	})
	if err != nil {
		return nil, err
	}
	state.lastMeeting = ev
	return ev, nil
}

func (d *Dispatcher) searchWeb(ctx context.Context, p model.Payload) (any, error) {
	if d.set.Search == nil {
		return nil, notConfigured("search")
	}
	query := p.String("query")
	if query == "" {
		return nil, connectors.Missing("search_web", "query", "What would you like me to search for?")
	}
	return d.set.Search.Search(ctx, query, p.Int("num_results", DefaultSearchResults))
}

func (d *Dispatcher) orderPizza(ctx context.Context, p model.Payload, state *batch) (any, error) {
	if d.set.Food == nil {
		return nil, notConfigured("pizza")
	}
	receipt, err := d.set.Food.Order(ctx, p)
	if err != nil {
		return nil, err
	}
	state.lastOrder = receipt
	return receipt, nil
}

func (d *Dispatcher) pdfQuestion(ctx context.Context, p model.Payload) (any, error) {
	question := p.String("question")
	if question == "" {
		return nil, connectors.Missing("pdf_question", "question", "Please provide the question you would like answered from the PDFs.")
	}
	docs := p.List("documents")
	if len(docs) == 0 {
		return nil, connectors.Missing("pdf_question", "documents", "Please provide one or more PDF documents (paths or base64 data) to analyze.")
	}
	if d.set.Documents == nil {
		return nil, notConfigured("documents")
	}
	if d.set.Answers == nil {
		return nil, notConfigured("answers")
	}

	var (
		texts     []string
		summaries []DocumentSummary
		problems  []string
	)
	for i, raw := range docs {
		idx := i + 1
		ref, ok := connectors.DocumentRefFrom(raw)
		if !ok {
			problems = append(problems, fmt.Sprintf("Document %d is in an unsupported format.", idx))
			continue
		}
		doc, err := d.set.Documents.Load(ctx, ref, idx)
		if err != nil {
			if mf, ok := asMissing(err); ok {
				problems = append(problems, mf.Prompt)
			} else {
				problems = append(problems, fmt.Sprintf("Failed to process document %d.", idx))
			}
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		texts = append(texts, doc.Text)
		name := doc.Name
		if name == "" {
			name = "Document " + strconv.Itoa(idx)
		}
		summaries = append(summaries, DocumentSummary{Name: name, Length: len(doc.Text)})
	}

	if len(problems) > 0 {
		return nil, connectors.Missing("pdf_question", "documents", strings.Join(problems, " "))
	}
	if len(texts) == 0 {
		return nil, connectors.Missing("pdf_question", "documents", "No readable text found in the provided PDFs.")
	}

	ans, err := d.set.Answers.Answer(ctx, question, texts)
	if err != nil {
		return nil, err
	}
	return &PDFAnswer{
		Question:  question,
		Answer:    ans.Text,
		Documents: summaries,
		Backend:   ans.Backend,
		Private:   ans.Private,
	}, nil
}

func (d *Dispatcher) answerQuestion(ctx context.Context, p model.Payload, state *batch) (any, error) {
	question := p.String("question")
	if question == "" {
		return nil, connectors.Missing("answer_question", "question", "Please provide the question you want answered.")
	}
	if hint := state.fallback; hint != "" {
		state.fallback = ""
		return &connectors.Answer{Text: hint, Degraded: true}, nil
	}
	if d.set.Answers == nil {
		return nil, notConfigured("answers")
	}

	var docs []string
	for _, item := range p.List("context") {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			docs = append(docs, s)
		}
	}
	return d.set.Answers.Answer(ctx, question, docs)
}

// =============================================================================
// CHAINED EMAIL BODIES
// =============================================================================

func meetingEmailBody(ev *connectors.ScheduledEvent) string {
	title := ev.Title
	if title == "" {
		title = "Meeting"
	}
	return fmt.Sprintf("Hello,\n\nOur meeting %q is scheduled.\nStart: %s\nEnd: %s\nAttendees: %s\n\nLooking forward to it.\n",
		title, ev.Start, ev.End, strings.Join(ev.Attendees, ", "))
}

func orderEmailBody(order *connectors.OrderReceipt) string {
	lines := []string{"Hello,", "", "Thanks for placing your Domino's order. Here's the summary:"}
	for _, item := range order.Items {
		lines = append(lines, fmt.Sprintf("- %d x %s", item.Quantity, item.Code))
	}
	if order.Total != nil && *order.Total > 0 {
		currency := order.Currency
		if currency == "" {
			currency = "USD"
		}
		lines = append(lines, "", fmt.Sprintf("Total: %.2f %s", *order.Total, currency))
	}
	lines = append(lines, "\nEnjoy your meal!")
	return strings.Join(lines, "\n")
}

// =============================================================================
// HELPERS
// =============================================================================

func notConfigured(connector string) error {
	return connectors.Failure(connector, "connector is not configured", nil)
}

func asMissing(err error) (*connectors.MissingFieldError, bool) {
	var mf *connectors.MissingFieldError
	if errors.As(err, &mf) {
		return mf, true
	}
	return nil, false
}
