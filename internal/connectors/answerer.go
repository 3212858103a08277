// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"strings"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
)

// Document limits per backend.
const (
	MaxLocalDocuments  = 5
	MaxRemoteDocuments = 3
	answerMaxTokens    = 512
	documentSeparator  = "\n---\n"
)

const (
	localContextPrompt = "Use the provided context to answer the user's question. " +
		"If the context does not contain enough information, explain what is missing and ask the user to provide it. " +
		"Only reference the given context."
	remoteContextPrompt = "Answer the question based on the provided context."
	localGeneralPrompt  = "You are the user's trusted local assistant running entirely on a private machine. " +
		"Handle sensitive information responsibly. If you do not have enough information, explicitly ask the user what you need instead of guessing. " +
		"Keep answers concise and actionable."
	remoteGeneralPrompt = "You are a helpful assistant. If you do not have enough information, ask the user what you need instead of guessing. " +
		"Keep answers concise."
)

type privateInputKey struct{}

// WithPrivateInput marks ctx as serving a prompt that was classified
// private. Answers given under it are never sent to the remote backend,
// whatever the question text looks like.
func WithPrivateInput(ctx context.Context) context.Context {
	return context.WithValue(ctx, privateInputKey{}, true)
}

// PrivateInput reports whether ctx was marked by WithPrivateInput.
func PrivateInput(ctx context.Context) bool {
	private, _ := ctx.Value(privateInputKey{}).(bool)
	return private
}

// ModelAnswerer answers questions through the model router. Private
// questions and documents stay on the local backend; public ones are
// redacted before they are sent.
type ModelAnswerer struct {
	router *router.ModelRouter
	guard  *privacy.Guard
}

// NewModelAnswerer creates an answerer. A nil guard uses the default rules.
func NewModelAnswerer(r *router.ModelRouter, g *privacy.Guard) *ModelAnswerer {
	if g == nil {
		g = privacy.NewGuard(privacy.DefaultRules())
	}
	return &ModelAnswerer{router: r, guard: g}
}

// Answer answers question, grounded in documents when any are given. The
// verdict starts from the request's (see WithPrivateInput) and is merged
// with the question's and every document's.
func (a *ModelAnswerer) Answer(ctx context.Context, question string, documents []string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, Missing("answer_question", "question", "Please provide the question you want answered.")
	}
	if a.router == nil {
		return nil, Failure("answers", "no model router is configured", nil)
	}

	verdict := privacy.Public
	if PrivateInput(ctx) {
		verdict = privacy.Verdict{IsPrivate: true}
	}
	classifier := a.guard.Classifier()
	verdict = verdict.Worse(classifier.Classify(question))
	for _, doc := range documents {
		verdict = verdict.Worse(classifier.Classify(doc))
	}

	messages := buildAnswerMessages(question, documents, verdict.IsPrivate)
	if !verdict.IsPrivate {
		// Redact the user turn; the system turn is fixed text.
		screened := a.guard.Screen(messages[1].Content)
		messages[1] = model.NewUserMessage(screened.Text)
		verdict = verdict.Worse(screened.Verdict)
	}

	var (
		text string
		sel  router.Selection
		err  error
	)
	for attempt := 0; attempt < 2; attempt++ {
		text, sel, err = a.router.CompleteFor(ctx, verdict, messages, model.TextOptions(answerMaxTokens))
		if err == nil || ctx.Err() != nil || !sel.Ready {
			break
		}
	}
	if err != nil {
		if router.IsConfigurationError(err) || !sel.Ready {
			return nil, Failure("answers", "no model backend is available", err)
		}
		return nil, Failure("answers", "the model could not answer", err)
	}

	return &Answer{
		Text:     strings.TrimSpace(text),
		Backend:  sel.Name,
		Degraded: sel.Degraded,
		Private:  verdict.IsPrivate,
	}, nil
}

// buildAnswerMessages returns a system and a user message. Local calls get
// more context documents than remote ones.
func buildAnswerMessages(question string, documents []string, private bool) []model.Message {
	var docs []string
	for _, d := range documents {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}

	if len(docs) == 0 {
		system := remoteGeneralPrompt
		if private {
			system = localGeneralPrompt
		}
		return []model.Message{model.NewSystemMessage(system), model.NewUserMessage(question)}
	}

	limit, system := MaxRemoteDocuments, remoteContextPrompt
	if private {
		limit, system = MaxLocalDocuments, localContextPrompt
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	content := "Context:\n" + strings.Join(docs, documentSeparator) + "\n\nQuestion: " + question
	return []model.Message{model.NewSystemMessage(system), model.NewUserMessage(content)}
}
