// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-assist command line.
//
// Commands:
//
//	serve      run the HTTP API
//	ask        run one request and print the result
//	repl       interactive session with input history
//	classify   show how text would be treated for privacy
//	status     backend availability and recent actions
//	config     show, init or locate the config file
//
// Global flags: --config, --mode, --paranoid, --json, --verbose.
// Logs go to stderr; results and JSON go to stdout.
package cli
