// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders model answers for terminal display. Returns the
// original content if the renderer cannot be built or fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n") + "\n"
}

// =============================================================================
// RESPONSE RENDERING
// =============================================================================

// responseRenderer writes a CommandResponse for humans. Markdown is only
// rendered when stdout is a terminal.
type responseRenderer struct {
	w        io.Writer
	markdown bool
	width    int
}

func newResponseRenderer(w io.Writer) *responseRenderer {
	return &responseRenderer{
		w:        w,
		markdown: IsStdoutTTY(),
		width:    GetTerminalWidth(),
	}
}

// Render writes every action result, then clarifications and notes.
func (r *responseRenderer) Render(resp *model.CommandResponse) {
	if resp == nil {
		return
	}
	if len(resp.Actions) == 0 && len(resp.Clarifications) == 0 {
		fmt.Fprintln(r.w, RenderConditional(DimStyle, "Nothing to do."))
	}

	for _, entry := range resp.Actions {
		r.renderEntry(entry)
	}

	for _, c := range resp.Clarifications {
		label := "?"
		if c.Action != "" {
			label = "? " + c.Action
		}
		fmt.Fprintf(r.w, "%s %s\n", RenderConditional(WarningStyle, label), c.Prompt)
	}

	for _, n := range resp.Notes {
		fmt.Fprintln(r.w, RenderConditional(DimStyle, "note: "+n))
	}

	footer := "backend: " + orDash(resp.Backend)
	if resp.Degraded {
		footer += " (degraded)"
	}
	fmt.Fprintln(r.w, RenderConditional(DimStyle, footer))
}

func (r *responseRenderer) renderEntry(entry model.DispatchEntry) {
	fmt.Fprintf(r.w, "%s %s\n", RenderStatus(string(entry.Status)), RenderConditional(TitleStyle, entry.Action))
	if entry.Status != model.StatusOK {
		fmt.Fprintf(r.w, "    %s\n", entry.Error)
		return
	}

	result, _ := entry.Result.(map[string]any)
	p := model.Payload(result)

	switch entry.Action {
	case "send_email":
		fmt.Fprintf(r.w, "    %s to %s: %s\n", p.String("status"), p.String("to"), p.String("subject"))
	case "schedule_meeting":
		fmt.Fprintf(r.w, "    %s  %s -> %s (%s)\n", orDash(p.String("title")), p.String("start"), p.String("end"), p.String("time_zone"))
		if attendees := p.StringList("attendees"); len(attendees) > 0 {
			fmt.Fprintf(r.w, "    with %s\n", strings.Join(attendees, ", "))
		}
	case "search_web":
		r.renderSearch(p)
	case "order_pizza":
		line := "    " + p.String("status")
		if msg := p.String("message"); msg != "" {
			line += ": " + msg
		}
		fmt.Fprintln(r.w, line)
	case "pdf_question", "answer_question":
		r.renderAnswer(p.String("answer"))
	default:
		if entry.Result != nil {
			fmt.Fprintf(r.w, "    %v\n", entry.Result)
		}
	}
}

func (r *responseRenderer) renderSearch(p model.Payload) {
	results := p.List("results")
	if len(results) == 0 {
		fmt.Fprintf(r.w, "    no results for %q\n", p.String("query"))
		return
	}
	for i, item := range results {
		hit, _ := item.(map[string]any)
		h := model.Payload(hit)
		fmt.Fprintf(r.w, "    %d. %s\n", i+1, util.TruncateWidth(util.SingleLine(h.String("title")), r.width-8))
		fmt.Fprintf(r.w, "       %s\n", RenderConditional(DimStyle, h.String("url")))
		if snippet := h.String("snippet"); snippet != "" {
			fmt.Fprintf(r.w, "       %s\n", util.TruncateWidth(util.SingleLine(snippet), r.width-8))
		}
	}
}

func (r *responseRenderer) renderAnswer(answer string) {
	if answer == "" {
		return
	}
	if r.markdown {
		fmt.Fprint(r.w, renderMarkdown(answer, r.width-4))
		return
	}
	for _, line := range strings.Split(WrapText(answer, r.width-4), "\n") {
		fmt.Fprintf(r.w, "    %s\n", line)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
