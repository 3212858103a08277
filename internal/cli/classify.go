// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/privacy"
)

// ClassifyResult is what the classify command reports.
type ClassifyResult struct {
	Verdict privacy.Verdict `json:"verdict"`
	Route   string          `json:"route"`
	// Prompt is the text a remote backend would see. Empty when private.
	Prompt     string               `json:"prompt,omitempty"`
	Redactions privacy.RedactionMap `json:"redactions,omitempty"`
	Sanitized  string               `json:"sanitized"`
}

func newClassifyCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   `classify "text"`,
		Short: "Show how a request would be treated for privacy",
		Long: `Classify text without calling any model.

Shows whether the text is private (local model only), the placeholder
version a remote model would receive, and how the text would look after
output sanitization.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			rules, err := privacy.LoadRules(cfg.Privacy.RulesFile)
			if err != nil {
				return &CommandError{Action: "load privacy rules", Err: err, Code: ExitConfig}
			}

			res := classifyText(privacy.NewGuard(rules), privacy.NewSanitizer(rules), strings.Join(args, " "), cfg.Routing.Paranoid)
			if flags.json {
				return NewJSONResponse("classify", res).Write(cmd.OutOrStdout())
			}
			printClassify(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func classifyText(g *privacy.Guard, s *privacy.Sanitizer, text string, paranoid bool) ClassifyResult {
	screened := g.Screen(text)
	res := ClassifyResult{
		Verdict:   screened.Verdict,
		Sanitized: s.SanitizeString(text),
	}
	switch {
	case screened.Verdict.IsPrivate:
		res.Route = "local only"
	case paranoid:
		res.Route = "local only (paranoid)"
		res.Prompt = screened.Text
		res.Redactions = screened.Redactions
	default:
		res.Route = "local or remote"
		res.Prompt = screened.Text
		res.Redactions = screened.Redactions
	}
	return res
}

func printClassify(w io.Writer, res ClassifyResult) {
	status := "ok"
	if res.Verdict.IsPrivate {
		status = "private"
	}
	fmt.Fprintf(w, "%s %s\n", RenderStatus(status), RenderConditional(TitleStyle, res.Verdict.String()))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Route"), res.Route)
	if res.Prompt != "" {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Remote sees"), res.Prompt)
	}
	if n := res.Redactions.Total(); n > 0 {
		fmt.Fprintf(w, "%s %d\n", RenderLabel("Placeholders"), n)
	}
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Sanitized"), res.Sanitized)
}
