// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

// Token limits for interpretation calls.
const (
	DefaultLocalMaxTokens  = 500
	DefaultRemoteMaxTokens = 400
	maxAttempts            = 2
)

// Notes attached to degraded interpretations.
const (
	NoteRawAnswer = "model output could not be parsed; its text is returned as a plain answer"
	NoteHeuristic = "no model backend produced a plan; the request was interpreted with keyword rules"
)

var loadSchema = sync.OnceValues(compileSchema)

// Options configure an Interpreter.
type Options struct {
	// Timezone is assumed for meeting times without a zone.
	Timezone string
	// MaxTokens overrides the per-backend interpretation token limit.
	MaxTokens int
	Logger    *slog.Logger
}

// Interpreter turns a free-text prompt into an ordered action list.
// It is safe for concurrent use.
type Interpreter struct {
	router *router.ModelRouter
	guard  *privacy.Guard
	opts   Options
	logger *slog.Logger
}

// New creates an interpreter over r and g.
func New(r *router.ModelRouter, g *privacy.Guard, opts Options) *Interpreter {
	if opts.Timezone == "" {
		opts.Timezone = DefaultTimezone
	}
	if g == nil {
		g = privacy.NewGuard(privacy.DefaultRules())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		router: r,
		guard:  g,
		opts:   opts,
		logger: logger.With("component", "interpret"),
	}
}

// Interpret screens prompt, routes it to a backend and normalizes the reply.
//
// The only error returned is *router.ConfigurationError, when no backend can
// serve the prompt. Malformed replies are retried once with a corrective
// message; after that the interpretation degrades to a best-effort plan.
func (in *Interpreter) Interpret(ctx context.Context, prompt string) (*model.Interpretation, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile interpretation schema: %w", err)
	}

	screened := in.guard.Screen(prompt)
	ctx, span := in.router.Recorder().Provider().StartSpan(ctx, "interpret", map[string]any{
		"private":     screened.Verdict.IsPrivate,
		"redactions":  screened.Redactions.Total(),
		"input.chars": len(prompt),
	})

	sel := in.router.Select(ctx, screened.Verdict)
	if !sel.Ready {
		cerr := &router.ConfigurationError{Reason: sel.Reason}
		telemetry.EndSpan(span, cerr)
		return nil, cerr
	}

	result := &model.Interpretation{
		Backend:  sel.Name,
		Private:  screened.Verdict.IsPrivate,
		Degraded: sel.Degraded,
	}
	if sel.Degraded {
		result.Notes = append(result.Notes, sel.Reason)
	}

	messages := []model.Message{
		model.NewSystemMessage(systemPrompt(in.opts.Timezone, screened.Verdict.IsPrivate)),
		model.NewUserMessage(screened.Text),
	}
	opts := model.JSONOptions(in.maxTokens(sel))

	var lastRaw string
	attempts := 0
	for attempts < maxAttempts && ctx.Err() == nil {
		attempts++
		raw, err := in.router.Complete(ctx, sel, messages, opts)
		if err != nil {
			in.logger.Warn("INTERPRET_RETRY", "attempt", attempts, "backend", sel.Name, "error", err)
			continue
		}
		lastRaw = raw

		actions, clarifications, perr := parse(schema, raw)
		if perr == nil {
			result.Actions = actions
			result.Clarifications = clarifications
			in.finish(span, result, attempts)
			return result, nil
		}

		reason := perr.Error()
		var oe *OutputError
		if errors.As(perr, &oe) {
			reason = oe.Reason
		}
		in.logger.Warn("INTERPRET_RETRY", "attempt", attempts, "backend", sel.Name, "reason", reason)
		messages = append(messages,
			model.NewAssistantMessage(raw),
			model.NewUserMessage(correctivePrompt(errors.New(reason))),
		)
	}

	result.Degraded = true
	if hint := strings.TrimSpace(lastRaw); hint != "" {
		result.FallbackAnswer = hint
		result.Actions = []model.Action{model.NewAction(model.ActionAnswerQuestion, model.Payload{
			"question": screened.Text,
		})}
		result.Notes = append(result.Notes, NoteRawAnswer)
	} else {
		result.Actions, result.Clarifications = heuristic(schema, screened.Text)
		result.Notes = append(result.Notes, NoteHeuristic)
	}
	in.finish(span, result, attempts)
	return result, nil
}

func (in *Interpreter) finish(span trace.Span, result *model.Interpretation, attempts int) {
	span.SetAttributes(
		attribute.Int("actions", len(result.Actions)),
		attribute.Int("clarifications", len(result.Clarifications)),
		attribute.Int("attempts", attempts),
		attribute.Bool("degraded", result.Degraded),
	)
	telemetry.EndSpan(span, nil)

	in.logger.Info("INTERPRET",
		"backend", result.Backend,
		"private", result.Private,
		"actions", len(result.Actions),
		"clarifications", len(result.Clarifications),
		"attempts", attempts,
		"degraded", result.Degraded,
	)
}

func (in *Interpreter) maxTokens(sel router.Selection) int {
	if in.opts.MaxTokens > 0 {
		return in.opts.MaxTokens
	}
	if sel.Kind.IsLocal() {
		return DefaultLocalMaxTokens
	}
	return DefaultRemoteMaxTokens
}
