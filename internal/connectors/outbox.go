// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"strings"

	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/storage"
)

// ValidEmail reports whether s looks like a single email address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && privacy.EmailPattern.FindString(s) == s
}

// Outbox is a Mailer that queues messages in the local database instead of
// delivering them.
type Outbox struct {
	store *storage.Store
	scrub func(string) string
}

// NewOutbox creates an outbox over store. scrub, when set, is applied to
// message bodies before they are stored.
func NewOutbox(store *storage.Store, scrub func(string) string) *Outbox {
	return &Outbox{store: store, scrub: scrub}
}

// Send queues email.
func (o *Outbox) Send(ctx context.Context, email Email) (*EmailReceipt, error) {
	to := strings.TrimSpace(email.To)
	if !ValidEmail(to) {
		return nil, Missing("send_email", "to", "Please provide the recipient's email address.")
	}
	if strings.TrimSpace(email.Body) == "" {
		return nil, Missing("send_email", "body", "Please supply the email body so the assistant can send your message.")
	}
	if o.store == nil {
		return nil, Failure("outbox", "mail storage is not configured", nil)
	}

	body := email.Body
	if o.scrub != nil {
		body = o.scrub(body)
	}
	rec := &storage.EmailRecord{To: to, Subject: email.Subject, Body: body}
	if err := o.store.SaveEmail(ctx, rec); err != nil {
		return nil, Failure("outbox", "could not queue the message", err)
	}

	return &EmailReceipt{
		ID:       rec.ID,
		To:       rec.To,
		Subject:  rec.Subject,
		Body:     rec.Body,
		Status:   rec.Status,
		QueuedAt: rec.CreatedAt,
	}, nil
}
