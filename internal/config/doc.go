// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads rigrun-assist configuration.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides and validation.
//
// # Configuration Precedence
//
//   - Environment variables (OPENAI_*, OLLAMA_HOST, LLAMA2_MODEL, RIGRUN_ASSIST_*)
//   - ~/.rigrun-assist/config.toml (or $RIGRUN_ASSIST_HOME/config.toml)
//   - Built-in defaults
//
// # Versioning
//
// Files carry a semantic version. Migrate upgrades 1.x files, which used
// an OpenRouter [cloud] section, and rejects files from a newer major.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg) // secrets redacted
package config
