// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connectors provides the skills the dispatcher calls.
//
// Each skill is a small interface (Mailer, Scheduler, Searcher, FoodOrderer,
// DocumentLoader, Answerer) collected in a Set. The local implementations
// record their effects in the SQLite store instead of talking to real mail,
// calendar or ordering services:
//
//   - Outbox queues email messages
//   - Calendar records events in a configured time zone
//   - DuckDuckGo runs key-less web searches
//   - PizzaOrderer validates orders and stores previews
//   - Workspace loads PDFs and text files confined to one directory
//   - ModelAnswerer answers questions through the model router
//
// # Errors
//
// A connector that needs more input returns *MissingFieldError, which the
// dispatcher turns into a clarification. Any other failure is a
// *ConnectorError whose Reason is safe to show the user.
package connectors
