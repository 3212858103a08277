// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline decides which outbound connections are allowed.
//
// URL scheme checks always apply. In paranoid mode only a loopback local
// model may be reached; the remote model and web search are refused.
//
// # Usage
//
//	policy := offline.Policy{Paranoid: cfg.Routing.Paranoid}
//	if err := policy.CheckLocalURL(cfg.Local.OllamaURL); err != nil {
//		logger.Warn("PARANOID_LOCAL_URL", "error", err)
//	}
//	searcher.Offline = policy.CheckWebSearch() != nil
package offline
