// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// newTestServer returns an Ollama stand-in. chat handles /api/chat.
func newTestServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{{Name: "llama2:latest"}}})
	})
	if chat != nil {
		mux.HandleFunc("POST /api/chat", chat)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: 2 * time.Second, RetryDelay: time.Millisecond})
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example:11434/"})
	cfg := c.GetConfig()

	if cfg.BaseURL != "http://example:11434" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.DefaultModel != "llama2" {
		t.Errorf("DefaultModel = %q, want llama2", cfg.DefaultModel)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", cfg.Timeout)
	}
	if NewClientWithConfig(nil).GetConfig().BaseURL != "http://127.0.0.1:11434" {
		t.Error("nil config should use the default base URL")
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_CheckRunning(t *testing.T) {
	srv := newTestServer(t, nil)
	if err := testClient(srv.URL).CheckRunning(context.Background()); err != nil {
		t.Fatalf("CheckRunning() error = %v", err)
	}

	srv.Close()
	err := testClient(srv.URL).CheckRunning(context.Background())
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("CheckRunning() on closed server = %v, want ErrNotRunning", err)
	}
}

func TestClient_HasModel(t *testing.T) {
	srv := newTestServer(t, nil)
	c := testClient(srv.URL)

	ok, err := c.HasModel(context.Background(), "llama2")
	if err != nil || !ok {
		t.Errorf("HasModel(llama2) = %v, %v; want true", ok, err)
	}
	ok, _ = c.HasModel(context.Background(), "mistral")
	if ok {
		t.Error("HasModel(mistral) = true, want false")
	}
}

func TestClient_ChatSendsFormatAndOptions(t *testing.T) {
	var got ChatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{Model: got.Model, Message: Message{Role: "assistant", Content: `{"actions":[]}`}, Done: true})
	})

	resp, err := testClient(srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Format:   "json",
		Options:  &Options{Temperature: 0, NumPredict: 128},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message.Content != `{"actions":[]}` {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if got.Model != "llama2" || got.Format != "json" || got.Stream {
		t.Errorf("request = %+v, want default model, json format, no stream", got)
	}
	if got.Options == nil || got.Options.NumPredict != 128 {
		t.Errorf("Options = %+v, want num_predict 128", got.Options)
	}
}

func TestClient_ChatErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType ErrorType
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'llama2' not found"}`, ErrTypeModelNotFound},
		{"model missing in body", http.StatusBadRequest, `{"error":"model \"llama2\" not found, try pulling it first"}`, ErrTypeModelNotFound},
		{"server error", http.StatusInternalServerError, `{"error":"out of memory"}`, ErrTypeInvalidResponse},
		{"bad json", http.StatusOK, `not json`, ErrTypeInvalidResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := testClient(srv.URL).Chat(context.Background(), ChatRequest{})
			var ce *ClientError
			if !errors.As(err, &ce) {
				t.Fatalf("Chat() error = %v, want *ClientError", err)
			}
			if ce.Type != tc.wantType {
				t.Errorf("Type = %v, want %v", ce.Type, tc.wantType)
			}
		})
	}
}

func TestClient_ChatRetriesConnectionFailures(t *testing.T) {
	srv := newTestServer(t, nil)
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, MaxRetries: 2, RetryDelay: time.Millisecond})
	_, err := c.Chat(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Chat() error = %v, want ErrNotRunning", err)
	}
}

func TestClient_ChatDoesNotRetryBadResponses(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	if _, err := c.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("Chat() error = nil, want error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestBackend_Complete(t *testing.T) {
	var got ChatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ChatResponse{Message: Message{Role: "assistant", Content: "Paris"}})
	})

	b := NewBackend(testClient(srv.URL))
	if b.Kind() != router.BackendLocal || b.Name() != "ollama" || !b.Configured() {
		t.Fatalf("backend identity = %v %q %v", b.Kind(), b.Name(), b.Configured())
	}

	text, err := b.Complete(context.Background(),
		[]model.Message{model.NewSystemMessage("be brief"), model.NewUserMessage("capital of France?")},
		model.TextOptions(64))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Paris" {
		t.Errorf("text = %q, want Paris", text)
	}
	if got.Format != "" {
		t.Errorf("Format = %q, want empty for text", got.Format)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Messages = %+v", got.Messages)
	}
}

func TestBackend_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	b := NewBackend(testClient(srv.URL))

	_, err := b.Complete(context.Background(), nil, model.JSONOptions(64))
	if !errors.Is(err, router.ErrBackendUnavailable) {
		t.Errorf("missing model error = %v, want unavailable", err)
	}
	if !strings.Contains(err.Error(), "ollama pull llama2") {
		t.Errorf("error %q should tell the user how to install the model", err)
	}

	srv.Close()
	err = b.Ping(context.Background())
	if !errors.Is(err, router.ErrBackendUnavailable) {
		t.Errorf("Ping() on closed server = %v, want unavailable", err)
	}

	slow := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	fast := NewBackend(NewClientWithConfig(&ClientConfig{BaseURL: slow.URL, Timeout: 20 * time.Millisecond}))
	_, err = fast.Complete(context.Background(), nil, model.TextOptions(8))
	if !errors.Is(err, router.ErrBackendFailed) {
		t.Errorf("timeout error = %v, want failed", err)
	}
}
