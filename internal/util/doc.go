// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the config, interpret and cli
// packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth, StringWidth, PadRight: terminal-width aware text helpers
//   - SingleLine: whitespace collapsing for one-line previews
package util
