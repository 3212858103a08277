// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the command pipeline shared by the HTTP server and
// the CLI.
//
// A command runs through three steps:
//
//  1. the interpreter screens the prompt, routes it and builds a plan
//  2. the dispatcher runs the plan against the connectors
//  3. the sanitizer scrubs everything the caller will see
//
// Only a missing model backend fails a command. Backend errors, malformed
// model output, missing fields and connector failures are all reported in
// the response.
package assistant
