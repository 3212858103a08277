// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/config"
)

// historyFileName lives in the config directory.
const historyFileName = "assist_history"

func newReplCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "repl",
		Aliases: []string{"chat"},
		Short:   "Interactive session with input history",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			input := newLineInput()
			defer input.Close()
			return runRepl(cmd.Context(), app, input, cmd.OutOrStdout(), flags.json)
		},
	}
}

// =============================================================================
// INPUT
// =============================================================================

// promptReader reads one line of input per call.
type promptReader interface {
	ReadInput(prompt string) (string, error)
}

// lineInput provides history and line editing on top of liner.
type lineInput struct {
	line        *liner.State
	historyFile string
}

func newLineInput() *lineInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &lineInput{line: line, historyFile: filepath.Join(dir, historyFileName)}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadInput reads a line and adds it to history. Private prompts are kept
// in the history file, which is owner-only.
func (in *lineInput) ReadInput(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (in *lineInput) Close() {
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			in.line.WriteHistory(f)
			f.Close()
		}
	}
	in.line.Close()
}

// =============================================================================
// LOOP
// =============================================================================

const replHelp = `Type a request, for example:
  email alice@example.com that I'm running late
  search the web for the best pizza in Chicago
  what does report.pdf say about Q3 revenue?

Commands:
  /status   show backend availability
  /stats    show call counters for this session
  /help     show this help
  /quit     exit`

// runRepl reads prompts until EOF, Ctrl+C or /quit.
func runRepl(ctx context.Context, app *App, in promptReader, out io.Writer, jsonMode bool) error {
	if !jsonMode {
		fmt.Fprintln(out, RenderConditional(TitleStyle, "rigrun-assist "+Version))
		fmt.Fprintln(out, RenderConditional(DimStyle, "Type /help for commands, Ctrl+D to exit."))
	}

	for {
		line, err := in.ReadInput(RenderConditional(PromptStyle, "assist> "))
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C), io.EOF (Ctrl+D) and read
			// errors all end the session.
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !handleReplCommand(ctx, app, line, out, jsonMode) {
				return nil
			}
			continue
		}

		if err := runAsk(ctx, app, line, out, jsonMode); err != nil {
			DisplayError(out, err, jsonMode)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handleReplCommand runs a slash command. It returns false to exit.
func handleReplCommand(ctx context.Context, app *App, line string, out io.Writer, jsonMode bool) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit", "/q":
		return false
	case "/help", "/?":
		fmt.Fprintln(out, replHelp)
	case "/status":
		if err := printStatus(ctx, app, out, jsonMode, 0); err != nil {
			DisplayError(out, err, jsonMode)
		}
	case "/stats":
		snap := app.Recorder.Snapshot()
		if jsonMode {
			NewJSONResponse("stats", snap).Write(out)
			break
		}
		fmt.Fprintf(out, "%s %d local, %d remote, %d failed\n", RenderLabel("Model calls"), snap.LocalCalls, snap.RemoteCalls, snap.FailedCalls)
		fmt.Fprintf(out, "%s %d run, %d failed\n", RenderLabel("Actions"), snap.Actions, snap.FailedActions)
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Clarifications"), snap.Clarifications)
	default:
		fmt.Fprintf(out, "unknown command %s (try /help)\n", line)
	}
	return true
}
