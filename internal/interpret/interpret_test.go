// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpret

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// =============================================================================
// TEST BACKEND
// =============================================================================

type reply struct {
	text string
	err  error
}

// scriptedBackend returns replies in order; the last one repeats.
type scriptedBackend struct {
	kind    router.BackendKind
	name    string
	pingErr error

	mu      sync.Mutex
	replies []reply
	calls   [][]model.Message
}

func newScripted(kind router.BackendKind, replies ...reply) *scriptedBackend {
	return &scriptedBackend{kind: kind, name: kind.String() + "-fake", replies: replies}
}

func (b *scriptedBackend) Kind() router.BackendKind { return b.kind }
func (b *scriptedBackend) Name() string             { return b.name }
func (b *scriptedBackend) Configured() bool         { return true }

func (b *scriptedBackend) Ping(ctx context.Context) error { return b.pingErr }

func (b *scriptedBackend) Complete(ctx context.Context, msgs []model.Message, opts model.CompletionOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, append([]model.Message(nil), msgs...))
	if len(b.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := b.replies[0]
	if len(b.replies) > 1 {
		b.replies = b.replies[1:]
	}
	return r.text, r.err
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *scriptedBackend) call(i int) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[i]
}

func newInterpreter(local, remote router.Backend) *Interpreter {
	r := router.New(local, remote, router.Options{})
	return New(r, privacy.NewGuard(privacy.DefaultRules()), Options{})
}

// =============================================================================
// ROUTING
// =============================================================================

func TestInterpretPublicPromptUsesRemote(t *testing.T) {
	local := newScripted(router.BackendLocal, reply{text: `{"actions":[]}`})
	remote := newScripted(router.BackendRemote, reply{
		text: `{"actions":[{"action":"answer_question","payload":{"question":"capital of France"}}]}`,
	})

	got, err := newInterpreter(local, remote).Interpret(context.Background(), "what's the capital of France")
	require.NoError(t, err)

	require.Len(t, got.Actions, 1)
	assert.Equal(t, model.ActionAnswerQuestion, got.Actions[0].Kind)
	assert.Equal(t, "capital of France", got.Actions[0].Payload.String("question"))
	assert.Equal(t, "remote-fake", got.Backend)
	assert.False(t, got.Private)
	assert.False(t, got.Degraded)
	assert.Equal(t, 0, local.callCount())
}

func TestInterpretPrivatePromptStaysLocal(t *testing.T) {
	local := newScripted(router.BackendLocal, reply{
		text: `{"actions":[{"action":"send_email","payload":{"to":"alice@example.com","body":"the report"}}]}`,
	})
	remote := newScripted(router.BackendRemote, reply{text: `{"actions":[]}`})

	got, err := newInterpreter(local, remote).Interpret(context.Background(), "email alice@example.com about the report")
	require.NoError(t, err)

	assert.True(t, got.Private)
	assert.Equal(t, "local-fake", got.Backend)
	assert.Equal(t, 0, remote.callCount(), "private prompt reached the remote backend")
	require.Equal(t, 1, local.callCount())

	msgs := local.call(0)
	assert.Contains(t, msgs[0].Content, "running entirely on the user's machine")
	assert.Equal(t, "email alice@example.com about the report", msgs[1].Content)
}

func TestInterpretRedactsPublicPrompt(t *testing.T) {
	remote := newScripted(router.BackendRemote, reply{
		text: `{"actions":[{"action":"answer_question","payload":{"question":"dinner at 7 for [PHONE_0]"}}]}`,
	})

	got, err := newInterpreter(newScripted(router.BackendLocal), remote).
		Interpret(context.Background(), "text 555 010 9999 that dinner is at 7")
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)

	user := remote.call(0)[1].Content
	assert.Equal(t, "text [PHONE_0] that dinner is at 7", user)
	assert.NotContains(t, user, "555")
	// Placeholders are not restored.
	assert.Equal(t, "dinner at 7 for [PHONE_0]", got.Actions[0].Payload.String("question"))
}

func TestInterpretDegradedSelectionIsNoted(t *testing.T) {
	local := newScripted(router.BackendLocal, reply{text: `{"action":"search_web","payload":{"query":"go"}}`})
	remote := newScripted(router.BackendRemote)
	remote.pingErr = errors.New("connection refused")

	got, err := newInterpreter(local, remote).Interpret(context.Background(), "search for go")
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Equal(t, "local-fake", got.Backend)
	require.NotEmpty(t, got.Notes)
	assert.Contains(t, got.Notes[0], "remote backend unavailable")
}

func TestInterpretWithoutBackendsIsConfigurationError(t *testing.T) {
	in := New(router.New(nil, nil, router.Options{}), nil, Options{})

	got, err := in.Interpret(context.Background(), "hello")
	assert.Nil(t, got)

	var cerr *router.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "no model backend available")
}

// =============================================================================
// RETRIES AND FALLBACKS
// =============================================================================

func TestInterpretInvalidJSONTwiceFallsBackToAnswer(t *testing.T) {
	remote := newScripted(router.BackendRemote, reply{text: "Paris is the capital of France."})

	got, err := newInterpreter(newScripted(router.BackendLocal), remote).
		Interpret(context.Background(), "what's the capital of France")
	require.NoError(t, err)

	require.Len(t, got.Actions, 1)
	assert.Equal(t, model.ActionAnswerQuestion, got.Actions[0].Kind)
	assert.Equal(t, "what's the capital of France", got.Actions[0].Payload.String("question"))
	assert.Equal(t, "Paris is the capital of France.", got.FallbackAnswer)
	assert.False(t, got.Actions[0].Payload.Has("answer_hint"))
	assert.True(t, got.Degraded)
	assert.Contains(t, got.Notes, NoteRawAnswer)

	require.Equal(t, 2, remote.callCount())
	retry := remote.call(1)
	require.Len(t, retry, 4)
	assert.Equal(t, model.RoleAssistant, retry[2].Role)
	assert.Contains(t, retry[3].Content, "could not be used")
	assert.Contains(t, retry[3].Content, "invalid JSON")
}

func TestInterpretRecoversOnCorrectiveRetry(t *testing.T) {
	remote := newScripted(router.BackendRemote,
		reply{text: `{"actions": "search_web"}`},
		reply{text: `{"actions":[{"action":"search_web","payload":{"query":"go generics"}}]}`},
	)

	got, err := newInterpreter(newScripted(router.BackendLocal), remote).
		Interpret(context.Background(), "search for go generics")
	require.NoError(t, err)

	require.Len(t, got.Actions, 1)
	assert.Equal(t, model.ActionSearchWeb, got.Actions[0].Kind)
	assert.False(t, got.Degraded)
	assert.Contains(t, remote.call(1)[3].Content, "expected JSON shape")
}

func TestInterpretEmptyPlanIsRetried(t *testing.T) {
	remote := newScripted(router.BackendRemote,
		reply{text: `{"actions": []}`},
		reply{text: `{"action":"answer_question","payload":{"question":"hi"}}`},
	)

	got, err := newInterpreter(newScripted(router.BackendLocal), remote).Interpret(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, 2, remote.callCount())
	assert.Contains(t, remote.call(1)[3].Content, "no actions and no clarifications")
}

func TestInterpretBackendErrorsUseKeywordRules(t *testing.T) {
	remote := newScripted(router.BackendRemote, reply{err: router.Failed("remote-fake", "request timed out", nil)})

	got, err := newInterpreter(newScripted(router.BackendLocal), remote).
		Interpret(context.Background(), "order a pizza for the team")
	require.NoError(t, err)

	require.Len(t, got.Actions, 1)
	assert.Equal(t, model.ActionOrderPizza, got.Actions[0].Kind)
	assert.True(t, got.Degraded)
	assert.Contains(t, got.Notes, NoteHeuristic)
	assert.Equal(t, 2, remote.callCount())
}

func TestInterpretCanceledContextSkipsBackend(t *testing.T) {
	local := newScripted(router.BackendLocal, reply{text: `{"action":"answer_question","payload":{"question":"x"}}`})
	r := router.New(local, nil, router.Options{Mode: router.ModeLocal})
	in := New(r, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := in.Interpret(ctx, "what time is it")
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, 0, local.callCount())
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalizeShapes(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		actions []model.ActionKind
		clarify int
		wantErr bool
	}{
		{"actions object", `{"actions":[{"action":"search_web","payload":{"query":"a"}},{"action":"send_email","payload":{}}]}`,
			[]model.ActionKind{model.ActionSearchWeb, model.ActionSendEmail}, 0, false},
		{"bare list", `[{"action":"order_pizza","payload":{}}]`, []model.ActionKind{model.ActionOrderPizza}, 0, false},
		{"single action", `{"action":"Schedule_Meeting","payload":{"title":"sync"}}`, []model.ActionKind{model.ActionScheduleMeeting}, 0, false},
		{"fenced", "```json\n{\"action\":\"search_web\",\"payload\":{\"query\":\"x\"}}\n```", []model.ActionKind{model.ActionSearchWeb}, 0, false},
		{"prose around json", `Sure! {"action":"search_web","payload":{"query":"x"}} Hope that helps.`, []model.ActionKind{model.ActionSearchWeb}, 0, false},
		{"clarifications only", `{"clarifications":[{"action":"send_email","field":"to","prompt":"Who should receive it?"}]}`, nil, 1, false},
		{"unknown action", `{"actions":[{"action":"launch_rocket","payload":{}}]}`, nil, 1, false},
		{"missing action", `{"actions":[{"payload":{"to":"x"}}]}`, nil, 1, false},
		{"non-object entry", `{"actions":[42,{"action":"search_web","payload":{"query":"go"}}]}`, []model.ActionKind{model.ActionSearchWeb}, 1, false},
		{"list of strings", `["search the web"]`, nil, 1, false},
		{"string payload", `{"action":"search_web","payload":"query"}`, nil, 0, true},
		{"not json", `I cannot help with that.`, nil, 0, true},
		{"scalar", `42`, nil, 0, true},
		{"empty object", `{}`, nil, 0, true},
		{"empty list", `[]`, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions, clarifications, err := parse(schema, tt.raw)
			if tt.wantErr {
				var oe *OutputError
				assert.ErrorAs(t, err, &oe)
				return
			}
			require.NoError(t, err)
			var kinds []model.ActionKind
			for _, a := range actions {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.actions, kinds)
			assert.Len(t, clarifications, tt.clarify)
		})
	}
}

func TestNormalizeClarificationText(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)

	_, clarifications, err := parse(schema, `{"actions":[
		{"action":"launch_rocket","payload":{"target":"moon"}},
		{"payload":{"query":"x"}},
		{"action":"search_web","payload":{"query":"go"}}
	],"clarifications":[{"action":"send_email","field":"body","prompt":"What should the email say?"}]}`)
	require.NoError(t, err)
	require.Len(t, clarifications, 3)

	assert.Equal(t, "launch_rocket", clarifications[0].Action)
	assert.Contains(t, clarifications[0].Prompt, "not understood")
	assert.Equal(t, "moon", clarifications[0].Payload["target"])

	assert.Equal(t, "action", clarifications[1].Field)
	assert.True(t, strings.HasPrefix(clarifications[1].Prompt, "Action missing"))

	assert.Equal(t, "send_email", clarifications[2].Action)
	assert.Equal(t, "body", clarifications[2].Field)
}

func TestNormalizeUnknownActionNameIsBounded(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)

	name := "send the quarterly numbers to everyone" + `\n` + strings.Repeat("x", 200)
	_, clarifications, err := parse(schema, `{"actions":[{"action":"`+name+`"}]}`)
	require.NoError(t, err)
	require.Len(t, clarifications, 1)

	c := clarifications[0]
	assert.LessOrEqual(t, len(c.Action), maxActionNameWidth)
	assert.NotContains(t, c.Action, "\n")
	assert.True(t, strings.HasPrefix(c.Action, "send the quarterly"))
	assert.Contains(t, c.Prompt, c.Action)
}

func TestNormalizeFlattenedPayload(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)

	actions, _, err := parse(schema, `{"actions":[{"action":"search_web","query":"weather","num_results":3}]}`)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "weather", actions[0].Payload.String("query"))
	assert.Equal(t, 3, actions[0].Payload.Int("num_results", 5))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}

// =============================================================================
// KEYWORD RULES
// =============================================================================

func TestHeuristic(t *testing.T) {
	schema, err := loadSchema()
	require.NoError(t, err)

	tests := []struct {
		prompt string
		kind   model.ActionKind
		check  func(t *testing.T, p model.Payload)
	}{
		{"order a pizza", model.ActionOrderPizza, nil},
		{"ask a question about the pdf", model.ActionPDFQuestion, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "ask a question about the pdf", p.String("question"))
			assert.False(t, p.Has("documents"))
		}},
		{"search for golang generics", model.ActionSearchWeb, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "golang generics", p.String("query"))
		}},
		{"look up the weather in Austin", model.ActionSearchWeb, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "the weather in Austin", p.String("query"))
		}},
		{"schedule a sync tomorrow", model.ActionScheduleMeeting, nil},
		{"mail bob@example.com subject: Lunch", model.ActionSendEmail, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "bob@example.com", p.String("to"))
			assert.Equal(t, "Lunch", p.String("subject"))
			assert.Equal(t, "mail bob@example.com subject: Lunch", p.String("body"))
		}},
		{"send an email saying: running late", model.ActionSendEmail, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "", p.String("to"))
			assert.Equal(t, "running late", p.String("body"))
		}},
		{"what is the tallest mountain", model.ActionAnswerQuestion, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "what is the tallest mountain", p.String("question"))
		}},
		{`{"action":"search_web","payload":{"query":"go"}}`, model.ActionSearchWeb, func(t *testing.T, p model.Payload) {
			assert.Equal(t, "go", p.String("query"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			actions, _ := heuristic(schema, tt.prompt)
			require.Len(t, actions, 1)
			assert.Equal(t, tt.kind, actions[0].Kind)
			if tt.check != nil {
				tt.check(t, actions[0].Payload)
			}
		})
	}
}

func TestSystemPromptListsEveryAction(t *testing.T) {
	p := systemPrompt(DefaultTimezone, false)
	for _, kind := range model.AllActionKinds() {
		assert.Contains(t, p, "- "+kind.String()+":")
	}
	assert.Contains(t, p, "America/Chicago")
	assert.Contains(t, p, "[EMAIL_0]")
	assert.NotContains(t, p, "%!")
}
