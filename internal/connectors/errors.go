// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"errors"
	"fmt"
)

// =============================================================================
// MISSING FIELDS
// =============================================================================

// MissingFieldError reports input a connector needs from the user. The
// dispatcher turns it into a clarification instead of a failure.
type MissingFieldError struct {
	Action string
	Field  string
	Prompt string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("missing %s", e.Field)
	}
	return fmt.Sprintf("%s: missing %s", e.Action, e.Field)
}

// Missing creates a MissingFieldError.
func Missing(action, field, prompt string) *MissingFieldError {
	return &MissingFieldError{Action: action, Field: field, Prompt: prompt}
}

// IsMissingField reports whether err is or wraps a MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// =============================================================================
// CONNECTOR FAILURES
// =============================================================================

// ConnectorError reports a connector that could not complete its work.
// Reason is safe to show the user; Cause may not be.
type ConnectorError struct {
	Connector string
	Reason    string
	Cause     error
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	msg := e.Connector + ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Failure creates a ConnectorError.
func Failure(connector, reason string, cause error) *ConnectorError {
	return &ConnectorError{Connector: connector, Reason: reason, Cause: cause}
}
