// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the router, the
// interpreter and the dispatcher.
//
// # Key Types
//
//   - ActionKind: Closed set of skills (send_email, schedule_meeting, ...)
//   - Action: One interpreted step with its loosely typed Payload
//   - Clarification: A question back to the user for missing data
//   - Interpretation: Ordered actions plus clarifications from the interpreter
//   - DispatchEntry / CommandResponse: What the caller receives
//   - Message / CompletionOptions: Backend call inputs
//
// # Usage
//
//	kind, ok := model.ParseActionKind("send_email")
//	action := model.NewAction(kind, model.Payload{"to": "[EMAIL_0]"})
//	to := action.Payload.String("to")
package model
