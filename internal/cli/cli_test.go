// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-assist/internal/assistant"
	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

func TestMain(m *testing.M) {
	ForceColorsEnabled(false)
	os.Exit(m.Run())
}

// =============================================================================
// FIXTURES
// =============================================================================

// writeTestConfig points every path at a temp dir and the local backend at
// a closed port, so no model is reachable.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RIGRUN_ASSIST_HOME", dir)
	for _, k := range []string{
		"LLAMA2_MODEL", "OLLAMA_HOST", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"PIZZA_LIVE_MODE", "RIGRUN_ASSIST_MODE", "RIGRUN_ASSIST_PARANOID", "RIGRUN_ASSIST_PORT",
		"RIGRUN_ASSIST_TOKEN",
	} {
		t.Setenv(k, "")
	}

	body := fmt.Sprintf(`version = "2.0.0"

[routing]
probe_timeout_secs = 1

[local]
ollama_url = "http://127.0.0.1:1"
timeout_secs = 2

[connectors]
workspace = %q
database = %q

[log]
level = "error"
`, filepath.Join(dir, "workspace"), filepath.Join(dir, "assist.db"))

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func testApp(t *testing.T) *App {
	t.Helper()
	path := writeTestConfig(t)
	app, err := loadApp(&globalFlags{configPath: path}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// scriptedInput replays lines, then reports EOF.
type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadInput(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitError},
		{"command error", &CommandError{Action: "x", Err: errors.New("y"), Code: ExitConfig}, ExitConfig},
		{"no backend", &router.ConfigurationError{Reason: "none"}, ExitUnavailable},
		{"wrapped no backend", fmt.Errorf("ask: %w", &router.ConfigurationError{Reason: "none"}), ExitUnavailable},
		{"empty prompt", assistant.ErrEmptyPrompt, ExitUsage},
		{"long prompt", assistant.ErrPromptTooLong, ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &router.ConfigurationError{Reason: "local model is not reachable"}, false)
	assert.Contains(t, buf.String(), "[Error]")
	assert.Contains(t, buf.String(), "ollama serve")

	buf.Reset()
	DisplayError(&buf, assistant.ErrEmptyPrompt, true)
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, float64(ExitUsage), got["code"])
}

// =============================================================================
// CLASSIFY
// =============================================================================

func TestClassifyText(t *testing.T) {
	rules := privacy.DefaultRules()
	g, s := privacy.NewGuard(rules), privacy.NewSanitizer(rules)

	res := classifyText(g, s, "email alice@example.com the notes", false)
	assert.True(t, res.Verdict.IsPrivate)
	assert.Equal(t, "local only", res.Route)
	assert.Empty(t, res.Prompt)
	assert.Equal(t, "email [REDACTED-EMAIL] the notes", res.Sanitized)

	res = classifyText(g, s, "text 555 010 9999 that dinner is at 7", false)
	assert.False(t, res.Verdict.IsPrivate)
	assert.Equal(t, "local or remote", res.Route)
	assert.Equal(t, "text [PHONE_0] that dinner is at 7", res.Prompt)
	assert.Equal(t, 1, res.Redactions.Total())

	res = classifyText(g, s, "what's the capital of France", true)
	assert.Equal(t, "local only (paranoid)", res.Route)
	assert.Equal(t, "what's the capital of France", res.Prompt)
}

func TestClassifyCommandJSON(t *testing.T) {
	path := writeTestConfig(t)
	out, err := runCommand(t, "--config", path, "--json", "classify", "my password is hunter2")
	require.NoError(t, err)

	var resp struct {
		Success bool           `json:"success"`
		Data    ClassifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Verdict.IsPrivate)
	assert.NotContains(t, out, "hunter2")
}

// =============================================================================
// RENDERING
// =============================================================================

func TestResponseRenderer(t *testing.T) {
	resp := model.NewCommandResponse()
	resp.Backend = "ollama"
	resp.Degraded = true
	resp.Actions = []model.DispatchEntry{
		{Action: "send_email", Status: model.StatusOK, Result: map[string]any{
			"to": "[REDACTED-EMAIL]", "subject": "Report", "status": "queued",
		}},
		{Action: "search_web", Status: model.StatusOK, Result: map[string]any{
			"query": "pizza", "results": []any{
				map[string]any{"title": "Best Pizza", "url": "https://example.com/pizza", "snippet": "deep dish"},
			},
		}},
		{Action: "answer_question", Status: model.StatusOK, Result: map[string]any{"answer": "Paris."}},
		{Action: "order_pizza", Status: model.StatusFailed, Error: "ordering is unavailable"},
	}
	resp.Clarifications = []model.Clarification{{Action: "schedule_meeting", Field: "start", Prompt: "When should the meeting start?"}}
	resp.Notes = []string{"routed locally"}

	var buf bytes.Buffer
	r := &responseRenderer{w: &buf, width: 80}
	r.Render(resp)
	out := buf.String()

	assert.Contains(t, out, "[OK] send_email")
	assert.Contains(t, out, "queued to [REDACTED-EMAIL]: Report")
	assert.Contains(t, out, "1. Best Pizza")
	assert.Contains(t, out, "https://example.com/pizza")
	assert.Contains(t, out, "    Paris.")
	assert.Contains(t, out, "[FAIL] order_pizza")
	assert.Contains(t, out, "ordering is unavailable")
	assert.Contains(t, out, "? schedule_meeting When should the meeting start?")
	assert.Contains(t, out, "note: routed locally")
	assert.Contains(t, out, "backend: ollama (degraded)")
}

func TestResponseRenderer_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := &responseRenderer{w: &buf, width: 80}
	r.Render(model.NewCommandResponse())
	assert.Contains(t, buf.String(), "Nothing to do.")
	assert.Contains(t, buf.String(), "backend: -")
}

func TestWrapText(t *testing.T) {
	text := strings.Repeat("word ", 40) + "\n\nshort"
	wrapped := WrapText(text, 30)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 28)
	}
	assert.True(t, strings.HasSuffix(wrapped, "\n\nshort"))
}

func TestRenderStatus(t *testing.T) {
	assert.Equal(t, "[OK]", RenderStatus("queued"))
	assert.Equal(t, "[FAIL]", RenderStatus("failed"))
	assert.Equal(t, "[WARN]", RenderStatus("private"))
	assert.Equal(t, "[NOT CONFIGURED]", RenderStatus("not configured"))
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.toml")

	out, err := runCommand(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	out, err = runCommand(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = runCommand(t, "--config", path, "config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestConfigShowRedacts(t *testing.T) {
	path := writeTestConfig(t)
	t.Setenv("OPENAI_API_KEY", "sk-should-not-print-0123456789")

	out, err := runCommand(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-should-not-print")
	assert.Contains(t, out, "[REDACTED]")
}

func TestBadConfigIsConfigExit(t *testing.T) {
	path := writeTestConfig(t)
	_, err := runCommand(t, "--config", path, "--mode", "sideways", "classify", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitConfig, GetExitCode(err))
}

func TestAskWithoutBackends(t *testing.T) {
	path := writeTestConfig(t)
	_, err := runCommand(t, "--config", path, "ask", "email bob@example.com hi")
	require.Error(t, err)
	assert.Equal(t, ExitUnavailable, GetExitCode(err))
	assert.NotContains(t, err.Error(), "bob@example.com")
}

func TestAskEmptyPrompt(t *testing.T) {
	path := writeTestConfig(t)
	_, err := runCommand(t, "--config", path, "ask", "   ")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestStatusJSON(t *testing.T) {
	app := testApp(t)

	var buf bytes.Buffer
	require.NoError(t, printStatus(context.Background(), app, &buf, true, 5))

	var resp struct {
		Data StatusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ollama", resp.Data.Routing.Local.Name)
	assert.False(t, resp.Data.Routing.Local.Available)
	assert.False(t, resp.Data.Routing.Remote.Configured)
	assert.False(t, resp.Data.Routing.Ready())
}

func TestStatusText(t *testing.T) {
	app := testApp(t)

	var buf bytes.Buffer
	require.NoError(t, printStatus(context.Background(), app, &buf, false, 5))
	out := buf.String()
	assert.Contains(t, out, "rigrun-assist status")
	assert.Contains(t, out, "[FAIL] ollama")
	assert.Contains(t, out, "No model backend is available.")
}

// =============================================================================
// REPL
// =============================================================================

func TestReplSlashCommands(t *testing.T) {
	app := testApp(t)

	var buf bytes.Buffer
	in := &scriptedInput{lines: []string{"", "/help", "/stats", "/bogus", "/quit", "never read"}}
	require.NoError(t, runRepl(context.Background(), app, in, &buf, false))

	out := buf.String()
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "0 local, 0 remote, 0 failed")
	assert.Contains(t, out, "unknown command /bogus")
	assert.Len(t, in.lines, 1)
}

func TestReplReportsErrorsAndContinues(t *testing.T) {
	app := testApp(t)

	var buf bytes.Buffer
	in := &scriptedInput{lines: []string{"what's the capital of France"}}
	require.NoError(t, runRepl(context.Background(), app, in, &buf, false))
	assert.Contains(t, buf.String(), "[Error]")
}
