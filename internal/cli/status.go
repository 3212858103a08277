// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-assist/internal/offline"
	"github.com/jeranaias/rigrun-assist/internal/router"
	"github.com/jeranaias/rigrun-assist/internal/storage"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
	"github.com/jeranaias/rigrun-assist/internal/util"
)

// StatusReport is the status command output.
type StatusReport struct {
	Routing router.StatusReport   `json:"routing"`
	Stats   telemetry.Snapshot    `json:"stats"`
	Outbox  []storage.EmailRecord `json:"outbox,omitempty"`
	Events  []storage.EventRecord `json:"events,omitempty"`
	Orders  []storage.OrderRecord `json:"orders,omitempty"`
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend availability and recent actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			return printStatus(cmd.Context(), app, cmd.OutOrStdout(), flags.json, recent)
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 5, "Number of recent emails, events and orders to show")
	return cmd
}

// collectStatus probes both backends and reads the most recent records.
func collectStatus(ctx context.Context, app *App, recent int) (*StatusReport, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := &StatusReport{
		Routing: app.Router.Status(probeCtx),
		Stats:   app.Recorder.Snapshot(),
	}
	report.Routing.Local.Error = app.Sanitizer.SanitizeString(report.Routing.Local.Error)
	report.Routing.Remote.Error = app.Sanitizer.SanitizeString(report.Routing.Remote.Error)
	if recent <= 0 {
		return report, nil
	}

	var err error
	if report.Outbox, err = app.Store.ListOutbox(ctx, recent); err != nil {
		return nil, err
	}
	if report.Events, err = app.Store.ListEvents(ctx, recent); err != nil {
		return nil, err
	}
	if report.Orders, err = app.Store.ListOrders(ctx, recent); err != nil {
		return nil, err
	}
	for i := range report.Outbox {
		report.Outbox[i].To = app.Sanitizer.SanitizeString(report.Outbox[i].To)
		report.Outbox[i].Subject = app.Sanitizer.SanitizeString(report.Outbox[i].Subject)
		report.Outbox[i].Body = app.Sanitizer.SanitizeString(report.Outbox[i].Body)
	}
	for i := range report.Events {
		report.Events[i].Title = app.Sanitizer.SanitizeString(report.Events[i].Title)
		report.Events[i].Description = app.Sanitizer.SanitizeString(report.Events[i].Description)
		for j, a := range report.Events[i].Attendees {
			report.Events[i].Attendees[j] = app.Sanitizer.SanitizeString(a)
		}
	}
	return report, nil
}

func printStatus(ctx context.Context, app *App, out io.Writer, jsonMode bool, recent int) error {
	report, err := collectStatus(ctx, app, recent)
	if err != nil {
		return &CommandError{Action: "status", Err: err, Code: ExitError}
	}
	if jsonMode {
		return NewJSONResponse("status", report).Write(out)
	}

	r := report.Routing
	title := "rigrun-assist status"
	if badge := (offline.Policy{Paranoid: r.Paranoid}).Badge(); badge != "" {
		title += " " + badge
	}
	fmt.Fprintln(out, RenderConditional(TitleStyle, title))
	fmt.Fprintln(out, RenderSeparator())
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Mode"), r.Mode)
	fmt.Fprintf(out, "%s %t\n", RenderLabel("Paranoid"), r.Paranoid)
	printBackend(out, "Local", r.Local)
	printBackend(out, "Remote", r.Remote)
	if !r.Ready() {
		fmt.Fprintln(out, RenderConditional(WarningStyle, "No model backend is available."))
	}

	s := report.Stats
	fmt.Fprintln(out, RenderConditional(SectionStyle, "Session"))
	fmt.Fprintf(out, "%s %d local, %d remote, %d failed\n", RenderLabel("Model calls"), s.LocalCalls, s.RemoteCalls, s.FailedCalls)

	if recent <= 0 {
		return nil
	}
	width := GetTerminalWidth() - 30
	if len(report.Outbox) > 0 {
		fmt.Fprintln(out, RenderConditional(SectionStyle, "Outbox"))
		for _, e := range report.Outbox {
			fmt.Fprintf(out, "  %s  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), util.PadRight(util.TruncateWidth(e.To, 24), 24), util.TruncateWidth(util.SingleLine(e.Subject), width))
		}
	}
	if len(report.Events) > 0 {
		fmt.Fprintln(out, RenderConditional(SectionStyle, "Calendar"))
		for _, e := range report.Events {
			fmt.Fprintf(out, "  %s  %s\n", e.Start.Format("2006-01-02 15:04"), util.TruncateWidth(util.SingleLine(e.Title), width))
		}
	}
	if len(report.Orders) > 0 {
		fmt.Fprintln(out, RenderConditional(SectionStyle, "Orders"))
		for _, o := range report.Orders {
			total := "-"
			if o.Total != nil {
				total = fmt.Sprintf("%.2f %s", *o.Total, o.Currency)
			}
			fmt.Fprintf(out, "  %s  %s  %d item(s)  %s\n", o.CreatedAt.Format("2006-01-02 15:04"), util.PadRight(o.Status, 10), len(o.Items), total)
		}
	}
	return nil
}

func printBackend(out io.Writer, label string, b router.BackendStatus) {
	state := "available"
	switch {
	case !b.Configured:
		state = "not configured"
	case !b.Available:
		state = "unavailable"
	}
	line := fmt.Sprintf("%s %s %s", RenderLabel(label), RenderStatus(state), b.Name)
	if b.Model != "" {
		line += " (" + b.Model + ")"
	}
	if b.Error != "" && b.Configured {
		line += "  " + RenderConditional(DimStyle, b.Error)
	}
	fmt.Fprintln(out, line)
}
