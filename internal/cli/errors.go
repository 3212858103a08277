// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/rigrun-assist/internal/assistant"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// =============================================================================
// EXIT CODES
// =============================================================================

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitConfig      = 3
	ExitUnavailable = 4
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with an exit code.
type CommandError struct {
	Action string
	Err    error
	Code   int
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *CommandError
	if errors.As(err, &ce) && ce.Code != 0 {
		return ce.Code
	}
	switch {
	case router.IsConfigurationError(err):
		return ExitUnavailable
	case errors.Is(err, assistant.ErrEmptyPrompt), errors.Is(err, assistant.ErrPromptTooLong):
		return ExitUsage
	}
	return ExitError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if jsonMode {
		data, _ := json.MarshalIndent(map[string]any{
			"success": false,
			"error":   err.Error(),
			"code":    GetExitCode(err),
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "%s %v\n", RenderConditional(ErrorStyle, "[Error]"), err)
	if router.IsConfigurationError(err) {
		fmt.Fprintln(w, RenderConditional(DimStyle, "Start Ollama (ollama serve) or set OPENAI_API_KEY, then run: rigrun-assist status"))
	}
}
