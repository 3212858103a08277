// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/connectors"
	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

// DefaultSearchResults is used when search_web has no num_results.
const DefaultSearchResults = connectors.DefaultSearchResults

// Options configures a Dispatcher.
type Options struct {
	// Sanitizer scrubs entry payloads, results and clarification payloads.
	// Defaults to the built-in rules.
	Sanitizer *privacy.Sanitizer
	// Location reads meeting times without an offset (default: UTC).
	Location *time.Location
	// Recorder counts actions and clarifications. Optional.
	Recorder *telemetry.Recorder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher runs interpreted actions against a connector set.
type Dispatcher struct {
	set       connectors.Set
	sanitizer *privacy.Sanitizer
	loc       *time.Location
	recorder  *telemetry.Recorder
	logger    *slog.Logger
}

// New creates a dispatcher over set.
func New(set connectors.Set, opts Options) *Dispatcher {
	if opts.Sanitizer == nil {
		opts.Sanitizer = privacy.NewSanitizer(privacy.DefaultRules())
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		set:       set,
		sanitizer: opts.Sanitizer,
		loc:       opts.Location,
		recorder:  opts.Recorder,
		logger:    logger.With("component", "dispatch"),
	}
}

// batch carries results earlier actions leave for later ones.
type batch struct {
	lastMeeting *connectors.ScheduledEvent
	lastOrder   *connectors.OrderReceipt
	// fallback answers the first answer_question without a model call.
	fallback string
}

// Dispatch runs the actions of interp in order. A missing field turns into
// a clarification and any other failure into a failed entry; neither stops
// the batch. Cancellation is checked between actions, and entries that
// finished are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, interp *model.Interpretation) *model.CommandResponse {
	resp := model.NewCommandResponse()
	if interp == nil {
		return resp
	}
	resp.Backend = interp.Backend
	resp.Degraded = interp.Degraded
	resp.Notes = append(resp.Notes, interp.Notes...)

	for _, c := range interp.Clarifications {
		resp.Clarifications = append(resp.Clarifications, d.sanitizeClarification(c))
	}
	if interp.Private {
		ctx = connectors.WithPrivateInput(ctx)
	}

	ctx, span := d.recorder.Provider().StartSpan(ctx, "dispatch", map[string]any{
		"actions.count":        len(interp.Actions),
		"clarifications.count": len(interp.Clarifications),
	})

	state := batch{fallback: interp.FallbackAnswer}
	for i, action := range interp.Actions {
		if err := ctx.Err(); err != nil {
			resp.Notes = append(resp.Notes, fmt.Sprintf("request canceled after %d of %d actions", i, len(interp.Actions)))
			d.logger.Warn("DISPATCH_CANCELED", "completed", i, "total", len(interp.Actions))
			break
		}

		start := time.Now()
		result, err := d.run(ctx, action, &state)
		name := action.Kind.String()
		status := string(model.StatusOK)

		var missing *connectors.MissingFieldError
		switch {
		case errors.As(err, &missing):
			status = "clarification"
			resp.Clarifications = append(resp.Clarifications, d.sanitizeClarification(model.Clarification{
				Action:  name,
				Field:   missing.Field,
				Prompt:  missing.Prompt,
				Payload: action.Payload,
			}))
		case err != nil:
			status = string(model.StatusFailed)
			resp.Actions = append(resp.Actions, model.DispatchEntry{
				Action:  name,
				Status:  model.StatusFailed,
				Payload: d.sanitizer.SanitizeMap(action.Payload),
				Error:   d.sanitizer.SanitizeString(failureReason(err)),
			})
			d.recorder.RecordAction(ctx, name, status)
		default:
			resp.Actions = append(resp.Actions, model.DispatchEntry{
				Action:  name,
				Status:  model.StatusOK,
				Payload: d.sanitizer.SanitizeMap(action.Payload),
				Result:  d.sanitizer.Sanitize(result),
			})
			d.recorder.RecordAction(ctx, name, status)
		}

		d.logger.Info("DISPATCH",
			"index", i,
			"action", name,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	d.recorder.RecordClarifications(ctx, len(resp.Clarifications))
	telemetry.EndSpan(span, ctx.Err())
	return resp
}

// sanitizeClarification scrubs every caller-visible field. Action and Field
// can be model-written text.
func (d *Dispatcher) sanitizeClarification(c model.Clarification) model.Clarification {
	c.Action = d.sanitizer.SanitizeString(c.Action)
	c.Field = d.sanitizer.SanitizeString(c.Field)
	c.Prompt = d.sanitizer.SanitizeString(c.Prompt)
	c.Payload = d.sanitizer.SanitizeMap(c.Payload)
	return c
}

// failureReason returns a message safe to show the caller. Connector
// causes are dropped: they can quote upstream responses.
func failureReason(err error) string {
	var ce *connectors.ConnectorError
	switch {
	case errors.As(err, &ce):
		return ce.Connector + ": " + ce.Reason
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "action failed"
	}
}
