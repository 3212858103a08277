// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
	"github.com/jeranaias/rigrun-assist/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func requireMissing(t *testing.T, err error) *MissingFieldError {
	t.Helper()
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf), "expected MissingFieldError, got %v", err)
	return mf
}

// =============================================================================
// OUTBOX
// =============================================================================

func TestOutboxQueuesMessage(t *testing.T) {
	store := openStore(t)
	ob := NewOutbox(store, strings.ToUpper)

	receipt, err := ob.Send(context.Background(), Email{To: " bob@example.com ", Subject: "Hi", Body: "see you"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "bob@example.com", receipt.To)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, "SEE YOU", receipt.Body)

	list, err := store.ListOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SEE YOU", list[0].Body)
}

func TestOutboxMissingFields(t *testing.T) {
	ob := NewOutbox(openStore(t), nil)

	_, err := ob.Send(context.Background(), Email{To: "not-an-address", Body: "x"})
	mf := requireMissing(t, err)
	assert.Equal(t, "to", mf.Field)
	assert.Equal(t, "Please provide the recipient's email address.", mf.Prompt)

	_, err = ob.Send(context.Background(), Email{To: "a@example.com", Body: "  "})
	mf = requireMissing(t, err)
	assert.Equal(t, "body", mf.Field)
}

func TestOutboxWithoutStore(t *testing.T) {
	_, err := NewOutbox(nil, nil).Send(context.Background(), Email{To: "a@example.com", Body: "x"})
	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "outbox", ce.Connector)
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestParseMeetingTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	got, err := ParseMeetingTime("2024-10-20T12:45:00-05:00", chicago)
	require.NoError(t, err)
	assert.Equal(t, 17, got.UTC().Hour())

	got, err = ParseMeetingTime("2024-10-20 09:30", chicago)
	require.NoError(t, err)
	assert.Equal(t, chicago, got.Location())
	assert.Equal(t, 9, got.Hour())

	_, err = ParseMeetingTime("next tuesday", chicago)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ISO 8601")
}

func TestCalendarSchedule(t *testing.T) {
	store := openStore(t)
	cal := NewCalendar(store, time.UTC)
	start := time.Date(2024, 10, 20, 15, 0, 0, 0, time.UTC)

	ev, err := cal.Schedule(context.Background(), Meeting{
		Start:     start,
		Duration:  45 * time.Minute,
		Attendees: []string{"ana@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Untitled Meeting", ev.Title)
	assert.Equal(t, "2024-10-20T15:00:00Z", ev.Start)
	assert.Equal(t, "2024-10-20T15:45:00Z", ev.End)
	assert.Equal(t, "scheduled", ev.Status)
	assert.Equal(t, "UTC", ev.TimeZone)

	events, err := store.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCalendarMissingFields(t *testing.T) {
	cal := NewCalendar(openStore(t), time.UTC)
	start := time.Now()

	tests := []struct {
		name    string
		meeting Meeting
		field   string
	}{
		{"no attendees", Meeting{Start: start, Duration: time.Hour}, "attendees"},
		{"no start", Meeting{Attendees: []string{"a@example.com"}, Duration: time.Hour}, "start_time"},
		{"bad duration", Meeting{Attendees: []string{"a@example.com"}, Start: start, Duration: -time.Minute}, "duration_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cal.Schedule(context.Background(), tt.meeting)
			assert.Equal(t, tt.field, requireMissing(t, err).Field)
		})
	}
}

// =============================================================================
// DUCKDUCKGO
// =============================================================================

const ddgPage = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc&amp;rut=abc">The <b>Go</b> Programming Language</a>
  <a class="result__snippet" href="#">Go is an open source &amp; fast language.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://pkg.go.dev/">Go Packages</a>
  <a class="result__snippet" href="#">Search   packages.</a>
</div>`

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo()
	ddg.BaseURL = srv.URL + "/"
	ddg.Scrub = func(s string) string { return strings.ReplaceAll(s, "secret", "[X]") }

	res, err := ddg.Search(context.Background(), " golang secret ", 0)
	require.NoError(t, err)
	assert.Equal(t, "golang [X]", gotQuery)
	assert.Equal(t, "duckduckgo", res.Source)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "https://go.dev/doc", res.Results[0].URL)
	assert.Equal(t, "The Go Programming Language", res.Results[0].Title)
	assert.Equal(t, "Go is an open source & fast language.", res.Results[0].Snippet)
	assert.Equal(t, "Search packages.", res.Results[1].Snippet)

	res, err = ddg.Search(context.Background(), "golang", 1)
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
}

func TestDuckDuckGoErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo()
	ddg.BaseURL = srv.URL + "/"

	_, err := ddg.Search(context.Background(), "   ", 5)
	assert.Equal(t, "query", requireMissing(t, err).Field)

	_, err = ddg.Search(context.Background(), "golang", 5)
	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "503")

	ddg.Offline = true
	_, err = ddg.Search(context.Background(), "golang", 5)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "offline")
}

func TestExtractActualURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", extractActualURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa"))
	assert.Equal(t, "http://plain.example", extractActualURL("http://plain.example"))
	assert.Empty(t, extractActualURL("/relative"))
}

// =============================================================================
// PIZZA
// =============================================================================

func pizzaPayload() model.Payload {
	return model.Payload{
		"customer": map[string]any{"first_name": "Ana", "last_name": "Lee", "email": "ana@example.com", "phone": "5551234567"},
		"address":  map[string]any{"street": "1 Main St", "city": "Austin", "region": "TX", "postal_code": "78701"},
		"items":    []any{map[string]any{"code": "14SCREEN extra cheese", "quantity": float64(2)}, "2lcoke"},
	}
}

func TestPizzaPreviewWhenLiveModeOff(t *testing.T) {
	store := openStore(t)
	p := NewPizzaOrderer(store, false)

	receipt, err := p.Order(context.Background(), pizzaPayload())
	require.NoError(t, err)
	assert.Equal(t, "preview", receipt.Status)
	assert.Equal(t, MsgLiveModeOff, receipt.Message)
	assert.Equal(t, []storage.OrderItem{{Code: "14SCREEN", Quantity: 2}, {Code: "2LCOKE", Quantity: 1}}, receipt.Items)
	require.NotNil(t, receipt.Total)
	assert.InDelta(t, 31.47, *receipt.Total, 0.001)

	orders, err := store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPizzaUnknownCodeHasNoTotal(t *testing.T) {
	payload := pizzaPayload()
	payload["items"] = []any{map[string]any{"code": "MYSTERY"}}
	receipt, err := NewPizzaOrderer(openStore(t), false).Order(context.Background(), payload)
	require.NoError(t, err)
	assert.Nil(t, receipt.Total)
}

func TestPizzaLiveMode(t *testing.T) {
	p := NewPizzaOrderer(openStore(t), true)
	p.getenv = func(string) string { return "" }

	receipt, err := p.Order(context.Background(), pizzaPayload())
	require.NoError(t, err)
	assert.Equal(t, "preview", receipt.Status)
	assert.Equal(t, MsgPaymentMissing, receipt.Message)

	p.getenv = func(key string) string { return "set" }
	receipt, err = p.Order(context.Background(), pizzaPayload())
	require.NoError(t, err)
	assert.Equal(t, "recorded", receipt.Status)
}

func TestPizzaValidation(t *testing.T) {
	p := NewPizzaOrderer(openStore(t), false)

	tests := []struct {
		name   string
		mutate func(model.Payload)
		prompt string
	}{
		{"no customer", func(p model.Payload) { delete(p, "customer") }, "Missing customer details for the order."},
		{"partial customer", func(p model.Payload) { p["customer"] = map[string]any{"first_name": "Ana"} }, "Customer details missing: email, last_name, phone."},
		{"partial address", func(p model.Payload) { p["address"] = map[string]any{"street": "x", "city": "y"} }, "Address details missing: postal_code, region."},
		{"empty items", func(p model.Payload) { p["items"] = []any{} }, "Add at least one Domino's menu code to items."},
		{"blank code", func(p model.Payload) { p["items"] = []any{map[string]any{"code": " "}} }, "Each item needs a Domino's menu or coupon code."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := pizzaPayload()
			tt.mutate(payload)
			_, err := p.Order(context.Background(), payload)
			mf := requireMissing(t, err)
			assert.Equal(t, "order_details", mf.Field)
			assert.Equal(t, tt.prompt, mf.Prompt)
		})
	}
}

func TestParseLiveMode(t *testing.T) {
	for _, v := range []string{"1", "true", " TRUE ", `"yes"`, "on"} {
		assert.True(t, ParseLiveMode(v), v)
	}
	for _, v := range []string{"", "0", "false", "maybe"} {
		assert.False(t, ParseLiveMode(v), v)
	}
}

// =============================================================================
// WORKSPACE
// =============================================================================

func TestWorkspaceLoadsTextFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("  quarterly notes \n"), 0o600))
	ws, err := NewWorkspace(root)
	require.NoError(t, err)

	doc, err := ws.Load(context.Background(), DocumentRef{Path: "notes.txt"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "quarterly notes", doc.Text)
}

func TestWorkspaceInlineData(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString([]byte("inline body"))
	doc, err := ws.Load(context.Background(), DocumentRef{Data: data}, 2)
	require.NoError(t, err)
	assert.Equal(t, "document-2", doc.Name)
	assert.Equal(t, "inline body", doc.Text)

	_, err = ws.Load(context.Background(), DocumentRef{Data: "***"}, 1)
	requireMissing(t, err)
}

func TestWorkspaceRejectsEscapes(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	require.NoError(t, os.Mkdir(root, 0o700))
	outside := filepath.Join(parent, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	ws, err := NewWorkspace(root)
	require.NoError(t, err)

	for _, p := range []string{"../secret.txt", outside} {
		_, err := ws.Load(context.Background(), DocumentRef{Path: p}, 1)
		mf := requireMissing(t, err)
		assert.Equal(t, "Document 1 path is outside the workspace.", mf.Prompt)
	}
}

func TestWorkspaceMissingDocument(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	_, err = ws.Load(context.Background(), DocumentRef{}, 3)
	assert.Equal(t, "Document 3 missing path or data.", requireMissing(t, err).Prompt)

	_, err = ws.Load(context.Background(), DocumentRef{Path: "nope.pdf"}, 1)
	assert.Equal(t, "Document 1 not found at path: nope.pdf", requireMissing(t, err).Prompt)
}

func TestWorkspaceMalformedPDF(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\nnot really a pdf"))
	_, err = ws.Load(context.Background(), DocumentRef{Data: data, Name: "broken.pdf"}, 1)
	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "documents", ce.Connector)
}

func TestDocumentRefFrom(t *testing.T) {
	ref, ok := DocumentRefFrom(" a.pdf ")
	assert.True(t, ok)
	assert.Equal(t, "a.pdf", ref.Path)

	ref, ok = DocumentRefFrom(map[string]any{"data": "QQ==", "name": "a"})
	assert.True(t, ok)
	assert.Equal(t, "QQ==", ref.Data)

	_, ok = DocumentRefFrom(42.0)
	assert.False(t, ok)
}

// =============================================================================
// ANSWERER
// =============================================================================

type answerBackend struct {
	kind  router.BackendKind
	reply string
	err   error

	mu    sync.Mutex
	calls [][]model.Message
}

func (b *answerBackend) Kind() router.BackendKind { return b.kind }
func (b *answerBackend) Name() string             { return b.kind.String() + "-fake" }
func (b *answerBackend) Configured() bool         { return true }

func (b *answerBackend) Ping(ctx context.Context) error { return nil }

func (b *answerBackend) Complete(ctx context.Context, msgs []model.Message, opts model.CompletionOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, msgs)
	return b.reply, b.err
}

func newAnswerer(local, remote *answerBackend) *ModelAnswerer {
	return NewModelAnswerer(router.New(local, remote, router.Options{}), privacy.NewGuard(privacy.DefaultRules()))
}

func TestAnswererPublicUsesRemote(t *testing.T) {
	local := &answerBackend{kind: router.BackendLocal, reply: "local"}
	remote := &answerBackend{kind: router.BackendRemote, reply: " Paris "}

	ans, err := newAnswerer(local, remote).Answer(context.Background(), "What is the capital of France?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris", ans.Text)
	assert.Equal(t, "remote-fake", ans.Backend)
	assert.False(t, ans.Private)
	assert.Empty(t, local.calls)
}

func TestAnswererPrivateRequestStaysLocal(t *testing.T) {
	local := &answerBackend{kind: router.BackendLocal, reply: "nearby"}
	remote := &answerBackend{kind: router.BackendRemote, reply: "remote"}

	ctx := WithPrivateInput(context.Background())
	require.True(t, PrivateInput(ctx))
	require.False(t, PrivateInput(context.Background()))

	ans, err := newAnswerer(local, remote).Answer(ctx, "Where does Jane Roe live?", nil)
	require.NoError(t, err)
	assert.Equal(t, "nearby", ans.Text)
	assert.Equal(t, "local-fake", ans.Backend)
	assert.True(t, ans.Private)
	assert.Empty(t, remote.calls)
	require.Len(t, local.calls, 1)
	assert.Equal(t, localGeneralPrompt, local.calls[0][0].Content)
}

func TestValidEmail(t *testing.T) {
	for _, s := range []string{"alice@example.com", " Bob.Smith+x@Mail.Example.ORG "} {
		assert.True(t, ValidEmail(s), s)
	}
	for _, s := range []string{"", "alice", "alice@example", "alice@example.com bob@example.com", "to: alice@example.com"} {
		assert.False(t, ValidEmail(s), s)
	}
}

func TestAnswererPrivateDocumentStaysLocal(t *testing.T) {
	local := &answerBackend{kind: router.BackendLocal, reply: "ok"}
	remote := &answerBackend{kind: router.BackendRemote, reply: "remote"}
	docs := []string{"my password is hunter2", "b", "c", "d", "e", "f"}

	ans, err := newAnswerer(local, remote).Answer(context.Background(), "summarize", docs)
	require.NoError(t, err)
	assert.True(t, ans.Private)
	assert.Empty(t, remote.calls)
	require.Len(t, local.calls, 1)

	msgs := local.calls[0]
	assert.Equal(t, localContextPrompt, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "hunter2")
	assert.Contains(t, msgs[1].Content, "\n---\ne")
	assert.NotContains(t, msgs[1].Content, "---\nf")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Question: summarize"))
}

func TestAnswererPublicDocumentLimit(t *testing.T) {
	local := &answerBackend{kind: router.BackendLocal, reply: "local"}
	remote := &answerBackend{kind: router.BackendRemote, reply: "ok"}

	_, err := newAnswerer(local, remote).Answer(context.Background(), "summarize", []string{"one", "two", "three", "four"})
	require.NoError(t, err)
	require.Len(t, remote.calls, 1)
	user := remote.calls[0][1].Content
	assert.Contains(t, user, "three")
	assert.NotContains(t, user, "four")
	assert.Equal(t, remoteContextPrompt, remote.calls[0][0].Content)
}

func TestAnswererErrors(t *testing.T) {
	_, err := NewModelAnswerer(nil, nil).Answer(context.Background(), " ", nil)
	assert.Equal(t, "question", requireMissing(t, err).Field)

	local := &answerBackend{kind: router.BackendLocal, err: errors.New("boom")}
	_, err = NewModelAnswerer(router.New(local, nil, router.Options{}), nil).Answer(context.Background(), "hello there", nil)
	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "the model could not answer", ce.Reason)
	assert.Len(t, local.calls, 2)
}
