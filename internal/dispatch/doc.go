// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch runs interpreted actions against the connector set.
//
// Actions run strictly in the order the interpreter produced them. Each one
// ends in exactly one of three ways:
//
//   - an "ok" entry carrying the connector result
//   - a clarification, when a required field is missing
//   - a "failed" entry with a reason that is safe to show the caller
//
// None of these stops the batch. Later actions may use earlier results: an
// email without a body after a meeting or pizza order gets a summary of it.
// Every payload and result is passed through the privacy sanitizer before it
// is added to the response.
//
// # Usage
//
//	d := dispatch.New(connectors.Set{Mail: outbox, Calendar: cal}, dispatch.Options{})
//	resp := d.Dispatch(ctx, interpretation)
package dispatch
