// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-assist/internal/assistant"
	"github.com/jeranaias/rigrun-assist/internal/cloud"
	"github.com/jeranaias/rigrun-assist/internal/config"
	"github.com/jeranaias/rigrun-assist/internal/connectors"
	"github.com/jeranaias/rigrun-assist/internal/dispatch"
	"github.com/jeranaias/rigrun-assist/internal/interpret"
	"github.com/jeranaias/rigrun-assist/internal/offline"
	"github.com/jeranaias/rigrun-assist/internal/ollama"
	"github.com/jeranaias/rigrun-assist/internal/privacy"
	"github.com/jeranaias/rigrun-assist/internal/router"
	"github.com/jeranaias/rigrun-assist/internal/storage"
	"github.com/jeranaias/rigrun-assist/internal/telemetry"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds every component built from one Config.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *storage.Store
	Rules     privacy.RuleSet
	Guard     *privacy.Guard
	Sanitizer *privacy.Sanitizer
	Recorder  *telemetry.Recorder
	Router    *router.ModelRouter
	Service   *assistant.Service
}

// NewLogger builds the process logger from the [log] section. Output goes
// to w, normally stderr so stdout stays clean for answers and JSON.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Build opens the store and wires backends, router, interpreter, connectors
// and the assistant service. Close releases the store.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := privacy.LoadRules(cfg.Privacy.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load privacy rules: %w", err)
	}
	guard := privacy.NewGuard(rules)
	sanitizer := privacy.NewSanitizer(rules)

	mode, err := router.ParseMode(cfg.Routing.Mode)
	if err != nil {
		return nil, err
	}
	policy := offline.Policy{Paranoid: cfg.Routing.Paranoid}
	if err := policy.CheckLocalURL(cfg.Local.OllamaURL); err != nil {
		logger.Warn("PARANOID_LOCAL_URL", "error", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Connectors.Database), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := storage.Open(cfg.Connectors.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	recorder := telemetry.NewRecorder(telemetry.NewProvider(telemetry.Config{
		Enabled: cfg.Telemetry.Enabled,
		Version: Version,
	}))

	local := ollama.NewBackend(ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		DefaultModel: cfg.Local.Model,
		Timeout:      config.Seconds(cfg.Local.TimeoutSecs),
		MaxRetries:   1,
	}))
	remote := cloud.NewBackend(cloud.NewClient(cloud.Config{
		APIKey:            cfg.Remote.APIKey,
		BaseURL:           cfg.Remote.BaseURL,
		Model:             cfg.Remote.Model,
		Timeout:           config.Seconds(cfg.Remote.TimeoutSecs),
		RequestsPerMinute: cfg.Remote.RequestsPerMinute,
		Logger:            logger,
	}))
	if cfg.Remote.APIKey != "" && !cloud.ValidateAPIKey(cfg.Remote.APIKey) {
		logger.Warn("REMOTE_KEY_FORMAT", "base_url", cfg.Remote.BaseURL, "hint", "key does not look like an sk- key")
	}

	mr := router.New(local, remote, router.Options{
		Mode:         mode,
		Paranoid:     cfg.Routing.Paranoid,
		ProbeTimeout: config.Seconds(cfg.Routing.ProbeTimeoutSecs),
		Recorder:     recorder,
		Logger:       logger,
	})

	set, err := buildConnectors(cfg, policy, store, mr, guard, sanitizer, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	in := interpret.New(mr, guard, interpret.Options{
		Timezone: cfg.Connectors.Timezone,
		Logger:   logger,
	})
	d := dispatch.New(set, dispatch.Options{
		Sanitizer: sanitizer,
		Location:  cfg.Location(),
		Recorder:  recorder,
		Logger:    logger,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Rules:     rules,
		Guard:     guard,
		Sanitizer: sanitizer,
		Recorder:  recorder,
		Router:    mr,
		Service:   assistant.New(in, d, sanitizer, logger),
	}, nil
}

func buildConnectors(cfg *config.Config, policy offline.Policy, store *storage.Store, mr *router.ModelRouter, guard *privacy.Guard, sanitizer *privacy.Sanitizer, logger *slog.Logger) (connectors.Set, error) {
	scrub := sanitizer.SanitizeString

	search := connectors.NewDuckDuckGo()
	search.Offline = policy.CheckWebSearch() != nil
	search.Scrub = scrub

	set := connectors.Set{
		Mail:     connectors.NewOutbox(store, scrub),
		Calendar: connectors.NewCalendar(store, cfg.Location()),
		Search:   search,
		Food:     connectors.NewPizzaOrderer(store, cfg.Connectors.PizzaLive),
		Answers:  connectors.NewModelAnswerer(mr, guard),
	}

	if err := os.MkdirAll(cfg.Connectors.Workspace, 0700); err != nil {
		logger.Warn("WORKSPACE_UNAVAILABLE", "reason", "create failed")
		return set, nil
	}
	ws, err := connectors.NewWorkspace(cfg.Connectors.Workspace)
	if err != nil {
		return set, fmt.Errorf("open workspace: %w", err)
	}
	set.Documents = ws
	return set, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
