// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigrun-assist/internal/dispatch"
	"github.com/jeranaias/rigrun-assist/internal/interpret"
	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// Input errors.
var (
	ErrEmptyPrompt   = errors.New("prompt cannot be empty")
	ErrPromptTooLong = errors.New("prompt is too long")
)

// MaxPromptLength bounds a single command.
const MaxPromptLength = 8000

// Interpreter turns a prompt into a plan.
type Interpreter interface {
	Interpret(ctx context.Context, prompt string) (*model.Interpretation, error)
}

// Dispatcher runs a plan.
type Dispatcher interface {
	Dispatch(ctx context.Context, interp *model.Interpretation) *model.CommandResponse
}

var (
	_ Interpreter = (*interpret.Interpreter)(nil)
	_ Dispatcher  = (*dispatch.Dispatcher)(nil)
)

// Service is the command pipeline: interpret, dispatch, sanitize.
type Service struct {
	interpreter Interpreter
	dispatcher  Dispatcher
	sanitizer   *privacy.Sanitizer
	logger      *slog.Logger
}

// New creates a service. A nil sanitizer uses the default rules.
func New(in Interpreter, d Dispatcher, s *privacy.Sanitizer, logger *slog.Logger) *Service {
	if s == nil {
		s = privacy.NewSanitizer(privacy.DefaultRules())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		interpreter: in,
		dispatcher:  d,
		sanitizer:   s,
		logger:      logger.With("component", "assistant"),
	}
}

// Handle runs one command. The only errors returned are ErrEmptyPrompt,
// ErrPromptTooLong and *router.ConfigurationError; every other problem is
// described inside the response. The response is always sanitized.
func (s *Service) Handle(ctx context.Context, prompt string) (*model.CommandResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len(prompt) > MaxPromptLength {
		return nil, ErrPromptTooLong
	}

	requestID := uuid.NewString()
	start := time.Now()

	interp, err := s.interpreter.Interpret(ctx, prompt)
	if err != nil {
		var ce *router.ConfigurationError
		if errors.As(err, &ce) {
			s.logger.Error("COMMAND_FAILED", "request_id", requestID, "error", s.sanitizer.SanitizeString(ce.Error()))
			return nil, &router.ConfigurationError{Reason: s.sanitizer.SanitizeString(ce.Reason)}
		}
		// The interpreter degrades instead of failing, so this is unexpected.
		s.logger.Error("COMMAND_FAILED", "request_id", requestID, "error_type", "interpret")
		resp := model.NewCommandResponse()
		resp.RequestID = requestID
		resp.Degraded = true
		resp.Notes = []string{"the request could not be interpreted"}
		return resp, nil
	}

	resp := s.dispatcher.Dispatch(ctx, interp)
	resp.RequestID = requestID
	resp = s.Sanitize(resp)

	s.logger.Info("COMMAND",
		"request_id", requestID,
		"input_chars", len(prompt),
		"backend", resp.Backend,
		"degraded", resp.Degraded,
		"actions", len(resp.Actions),
		"clarifications", len(resp.Clarifications),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// Sanitize applies the final output pass to every caller-visible field.
func (s *Service) Sanitize(resp *model.CommandResponse) *model.CommandResponse {
	if resp == nil {
		return nil
	}
	out := model.NewCommandResponse()
	out.RequestID = resp.RequestID
	out.Backend = resp.Backend
	out.Degraded = resp.Degraded
	for _, e := range resp.Actions {
		e.Payload = s.sanitizer.SanitizeMap(e.Payload)
		e.Result = s.sanitizer.Sanitize(e.Result)
		e.Error = s.sanitizer.SanitizeString(e.Error)
		out.Actions = append(out.Actions, e)
	}
	for _, c := range resp.Clarifications {
		c.Action = s.sanitizer.SanitizeString(c.Action)
		c.Field = s.sanitizer.SanitizeString(c.Field)
		c.Prompt = s.sanitizer.SanitizeString(c.Prompt)
		c.Payload = s.sanitizer.SanitizeMap(c.Payload)
		out.Clarifications = append(out.Clarifications, c)
	}
	for _, n := range resp.Notes {
		out.Notes = append(out.Notes, s.sanitizer.SanitizeString(n))
	}
	return out
}

// SanitizeText scrubs a diagnostic message before it is shown.
func (s *Service) SanitizeText(text string) string {
	return s.sanitizer.SanitizeString(text)
}
