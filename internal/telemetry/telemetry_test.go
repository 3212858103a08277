// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_LastCall(t *testing.T) {
	rec := NewRecorder(nil)
	ctx := context.Background()

	_, ok := rec.LastCall("")
	assert.False(t, ok)

	rec.RecordCall(ctx, CallInfo{Backend: "ollama", Kind: "local", Purpose: "interpret", DurationMs: 12})
	rec.RecordCall(ctx, CallInfo{Backend: "openai", Kind: "remote", Error: "backend failed"})

	local, ok := rec.LastCall("local")
	require.True(t, ok)
	assert.Equal(t, "ollama", local.Backend)
	assert.True(t, local.OK())
	assert.False(t, local.At.IsZero())

	latest, ok := rec.LastCall("")
	require.True(t, ok)
	assert.Equal(t, "openai", latest.Backend)
	assert.False(t, latest.OK())
}

func TestRecorder_Snapshot(t *testing.T) {
	rec := NewRecorder(NewProvider(Config{Enabled: true, Version: "test"}))
	ctx := context.Background()

	rec.RecordCall(ctx, CallInfo{Backend: "ollama", Kind: "local"})
	rec.RecordCall(ctx, CallInfo{Backend: "ollama", Kind: "local", Error: "timeout"})
	rec.RecordCall(ctx, CallInfo{Backend: "openai", Kind: "remote"})
	rec.RecordSelection(ctx, "local", true, false, false)
	rec.RecordAction(ctx, "send_email", "ok")
	rec.RecordAction(ctx, "search_web", "failed")
	rec.RecordClarifications(ctx, 2)
	rec.RecordClarifications(ctx, 0)

	s := rec.Snapshot()
	assert.Equal(t, int64(2), s.LocalCalls)
	assert.Equal(t, int64(1), s.RemoteCalls)
	assert.Equal(t, int64(1), s.FailedCalls)
	assert.Equal(t, int64(2), s.Actions)
	assert.Equal(t, int64(1), s.FailedActions)
	assert.Equal(t, int64(2), s.Clarifications)
	assert.Equal(t, int64(1), s.NotReady)
	require.NotNil(t, s.LastCall)
	assert.Equal(t, "openai", s.LastCall.Backend)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *Recorder
	ctx := context.Background()

	rec.RecordCall(ctx, CallInfo{Kind: "local"})
	rec.RecordSelection(ctx, "local", false, false, true)
	rec.RecordAction(ctx, "send_email", "ok")
	rec.RecordClarifications(ctx, 1)

	_, ok := rec.LastCall("local")
	assert.False(t, ok)
	assert.Equal(t, Snapshot{}, rec.Snapshot())
	assert.Nil(t, rec.Provider())
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := NewRecorder(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.RecordCall(ctx, CallInfo{Backend: "ollama", Kind: "local"})
			rec.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), rec.Snapshot().LocalCalls)
}

func TestSafeAttributes(t *testing.T) {
	attrs := SafeAttributes(map[string]any{
		"backend.kind": "local",
		"prompt_len":   42,
		"private":      true,
		"user_email":   "a@b.com",
		"api_key":      "sk-123",
		"categories":   []string{"email"},
		"huge":         string(make([]byte, 1000)),
		"unsupported":  struct{}{},
	})

	keys := make(map[string]bool)
	for _, a := range attrs {
		keys[string(a.Key)] = true
	}
	assert.True(t, keys["backend.kind"])
	assert.True(t, keys["private"])
	assert.True(t, keys["categories"])
	assert.False(t, keys["prompt_len"])
	assert.False(t, keys["user_email"])
	assert.False(t, keys["api_key"])
	assert.False(t, keys["huge"])
	assert.False(t, keys["unsupported"])
	assert.Nil(t, SafeAttributes(nil))
}

func TestStartAndEndSpan(t *testing.T) {
	p := NewProvider(Config{})
	ctx, span := p.StartSpan(context.Background(), "interpret", map[string]any{"backend.kind": "local"})
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))

	var nilProvider *Provider
	_, span = nilProvider.StartSpan(context.Background(), "dispatch", nil)
	EndSpan(span, nil)
}
