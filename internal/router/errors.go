// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
)

// =============================================================================
// BACKEND ERRORS
// =============================================================================

// ErrorType categorizes backend errors for handling.
type ErrorType int

const (
	// ErrTypeUnavailable means the backend cannot be used at all: missing
	// runtime, missing API key, unreachable host.
	ErrTypeUnavailable ErrorType = iota
	// ErrTypeFailed means the call itself failed: timeout, rate limit,
	// malformed or empty response.
	ErrTypeFailed
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeFailed:
		return "failed"
	default:
		return fmt.Sprintf("ErrorType(%d)", t)
	}
}

// BackendError is returned by backends and by ModelRouter.Complete.
type BackendError struct {
	Type    ErrorType
	Backend string
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	msg := e.Backend + " backend " + e.Type.String()
	if e.Backend == "" {
		msg = "backend " + e.Type.String()
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is matches the ErrBackendUnavailable and ErrBackendFailed sentinels by type.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return t.Backend == "" && t.Message == "" && t.Cause == nil && t.Type == e.Type
}

// Sentinel errors for errors.Is checks.
var (
	ErrBackendUnavailable = &BackendError{Type: ErrTypeUnavailable}
	ErrBackendFailed      = &BackendError{Type: ErrTypeFailed}
)

// Unavailable creates an unavailable error for backend.
func Unavailable(backend, message string, cause error) *BackendError {
	return &BackendError{Type: ErrTypeUnavailable, Backend: backend, Message: message, Cause: cause}
}

// Failed creates a call failure error for backend.
func Failed(backend, message string, cause error) *BackendError {
	return &BackendError{Type: ErrTypeFailed, Backend: backend, Message: message, Cause: cause}
}

// =============================================================================
// CONFIGURATION ERROR
// =============================================================================

// ConfigurationError means no model backend is usable for a request.
// It is the only condition that fails a whole command.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "no usable model backend: " + e.Reason
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
