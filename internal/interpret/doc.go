// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package interpret turns free-text instructions into an ordered list of
// actions and clarifications using the model router.
//
// Replies are validated against a JSON Schema. A malformed reply is retried
// once with a corrective message; after that the interpreter degrades to a
// plain answer or to keyword rules instead of failing the request.
package interpret
