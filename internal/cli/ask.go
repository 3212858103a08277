// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/assistant"
	"github.com/jeranaias/rigrun-assist/internal/config"
)

func newAskCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   `ask "request"`,
		Short: "Run one request and print the result",
		Long: `Interpret one free-text request, run the resulting actions and print
what happened. Use "-" to read the request from stdin.

Examples:
  rigrun-assist ask "email alice@example.com that the report is ready"
  rigrun-assist ask "book a meeting with bob tomorrow at 3pm for 30 minutes"
  echo "what is the capital of France?" | rigrun-assist ask -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "-" {
				data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), int64(assistant.MaxPromptLength)+1))
				if err != nil {
					return &CommandError{Action: "read stdin", Err: err, Code: ExitUsage}
				}
				prompt = string(data)
			}

			app, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()

			return runAsk(cmd.Context(), app, prompt, cmd.OutOrStdout(), flags.json)
		},
	}
	return cmd
}

// runAsk handles one prompt and prints the sanitized response.
func runAsk(ctx context.Context, app *App, prompt string, out io.Writer, jsonMode bool) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout(app.Config))
	defer cancel()

	resp, err := app.Service.Handle(ctx, prompt)
	if err != nil {
		return &CommandError{Action: "ask", Err: err, Code: GetExitCode(err)}
	}

	if jsonMode {
		return NewJSONResponse("ask", resp).Write(out)
	}
	r := newResponseRenderer(out)
	r.Render(resp)
	return nil
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.RequestTimeoutSecs > 0 {
		return config.Seconds(cfg.Server.RequestTimeoutSecs)
	}
	return 5 * time.Minute
}
