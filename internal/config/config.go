// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/jeranaias/rigrun-assist/internal/offline"
	"github.com/jeranaias/rigrun-assist/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "2.0.0"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-assist configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Routing    RoutingConfig    `toml:"routing" json:"routing"`
	Local      LocalConfig      `toml:"local" json:"local"`
	Remote     RemoteConfig     `toml:"remote" json:"remote"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Privacy    PrivacyConfig    `toml:"privacy" json:"privacy"`
	Connectors ConnectorsConfig `toml:"connectors" json:"connectors"`
	Telemetry  TelemetryConfig  `toml:"telemetry" json:"telemetry"`
	Log        LogConfig        `toml:"log" json:"log"`

	// Cloud is the pre-2.0 remote section. Migrate folds it into Remote.
	Cloud *LegacyCloudConfig `toml:"cloud,omitempty" json:"-"`
}

// RoutingConfig controls where public input goes.
type RoutingConfig struct {
	// Mode is "auto", "local" or "remote". "hybrid" and "cloud" are read as
	// auto and remote.
	Mode string `toml:"mode" json:"mode"`
	// Paranoid keeps every request on the local backend and disables web search.
	Paranoid bool `toml:"paranoid" json:"paranoid"`
	// ProbeTimeoutSecs bounds each backend reachability check.
	ProbeTimeoutSecs int `toml:"probe_timeout_secs" json:"probe_timeout_secs"`

	// DefaultMode is the pre-2.0 name of Mode.
	DefaultMode string `toml:"default_mode,omitempty" json:"-"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	OllamaURL   string `toml:"ollama_url" json:"ollama_url"`
	Model       string `toml:"model" json:"model"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`

	// OllamaModel is the pre-2.0 name of Model.
	OllamaModel string `toml:"ollama_model,omitempty" json:"-"`
}

// RemoteConfig contains the OpenAI-compatible remote backend configuration.
type RemoteConfig struct {
	APIKey            string `toml:"api_key" json:"api_key"`
	BaseURL           string `toml:"base_url" json:"base_url"`
	Model             string `toml:"model" json:"model"`
	TimeoutSecs       int    `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// AuthToken enables bearer auth when set.
	AuthToken  string   `toml:"auth_token" json:"auth_token"`
	AllowedIPs []string `toml:"allowed_ips" json:"allowed_ips"`
	// RateLimit is requests per minute per client (0 = unlimited).
	RateLimit          int `toml:"rate_limit" json:"rate_limit"`
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// PrivacyConfig points at extra classification and redaction rules.
type PrivacyConfig struct {
	// RulesFile is a YAML file of rules added to the built-in ones.
	RulesFile string `toml:"rules_file" json:"rules_file"`
}

// ConnectorsConfig configures the action connectors.
type ConnectorsConfig struct {
	// Workspace is the only directory pdf_question may read paths from.
	Workspace string `toml:"workspace" json:"workspace"`
	// Database is the SQLite file for the outbox, calendar and orders.
	Database string `toml:"database" json:"database"`
	// PizzaLive enables the live-mode order flow.
	PizzaLive bool `toml:"pizza_live" json:"pizza_live"`
	// Timezone is assumed for meeting times without an offset.
	Timezone string `toml:"timezone" json:"timezone"`
}

// TelemetryConfig enables OpenTelemetry spans and counters.
type TelemetryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Format is text or json.
	Format string `toml:"format" json:"format"`
}

// LegacyCloudConfig is the [cloud] section of 1.x config files.
type LegacyCloudConfig struct {
	OpenRouterKey string `toml:"openrouter_key"`
	DefaultModel  string `toml:"default_model"`
}

// legacyOpenRouterURL is where 1.x cloud keys were valid.
const legacyOpenRouterURL = "https://openrouter.ai/api/v1"

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".rigrun-assist"
	}
	return &Config{
		Version: CurrentVersion,
		Routing: RoutingConfig{
			Mode:             "auto",
			ProbeTimeoutSecs: 2,
		},
		Local: LocalConfig{
			OllamaURL:   "http://127.0.0.1:11434",
			Model:       "llama2",
			TimeoutSecs: 120,
		},
		Remote: RemoteConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-3.5-turbo",
			TimeoutSecs:       60,
			RequestsPerMinute: 60,
		},
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8787,
			AllowedIPs:         []string{},
			RateLimit:          60,
			RequestTimeoutSecs: 300,
		},
		Connectors: ConnectorsConfig{
			Workspace: filepath.Join(dir, "workspace"),
			Database:  filepath.Join(dir, "assist.db"),
			Timezone:  "America/Chicago",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RIGRUN_ASSIST_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-assist"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files hold API keys and must be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, then applies environment
// overrides, migration, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes path into cfg. Unknown keys are logged and ignored, so
// 1.x files with sections this version no longer reads still load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("CONFIG_UNKNOWN_KEYS", "path", path, "keys", strings.Join(keys, ", "))
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# rigrun-assist configuration file\n")
	b.WriteString("# Generated by rigrun-assist - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors listing all
// problems found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Routing
	switch strings.ToLower(c.Routing.Mode) {
	case "auto", "local", "remote", "hybrid", "cloud":
	default:
		add("routing.mode", "invalid mode '%s', must be one of: auto, local, remote", c.Routing.Mode)
	}
	if c.Routing.ProbeTimeoutSecs < 1 || c.Routing.ProbeTimeoutSecs > 60 {
		add("routing.probe_timeout_secs", "must be 1-60, got %d", c.Routing.ProbeTimeoutSecs)
	}

	// Backends
	if err := offline.ValidateURL(c.Local.OllamaURL); err != nil {
		add("local.ollama_url", "%v", err)
	}
	if c.Local.TimeoutSecs < 1 {
		add("local.timeout_secs", "must be positive, got %d", c.Local.TimeoutSecs)
	}
	if err := offline.ValidateURL(c.Remote.BaseURL); err != nil {
		add("remote.base_url", "%v", err)
	}
	if c.Remote.TimeoutSecs < 1 {
		add("remote.timeout_secs", "must be positive, got %d", c.Remote.TimeoutSecs)
	}
	if c.Remote.RequestsPerMinute < 0 {
		add("remote.requests_per_minute", "cannot be negative")
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}
	if c.Server.RequestTimeoutSecs < 1 {
		add("server.request_timeout_secs", "must be positive, got %d", c.Server.RequestTimeoutSecs)
	}
	if c.Server.AuthToken != "" && len(c.Server.AuthToken) < 16 {
		add("server.auth_token", "must be at least 16 characters")
	}

	// Connectors
	if c.Connectors.Timezone != "" {
		if _, err := time.LoadLocation(c.Connectors.Timezone); err != nil {
			add("connectors.timezone", "unknown time zone '%s'", c.Connectors.Timezone)
		}
	}
	if c.Connectors.Database == "" {
		add("connectors.database", "must be set")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be text or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Routing.Mode == "" {
		c.Routing.Mode = d.Routing.Mode
	}
	if c.Routing.ProbeTimeoutSecs == 0 {
		c.Routing.ProbeTimeoutSecs = d.Routing.ProbeTimeoutSecs
	}

	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = d.Local.OllamaURL
	}
	if c.Local.Model == "" {
		c.Local.Model = d.Local.Model
	}
	if c.Local.TimeoutSecs == 0 {
		c.Local.TimeoutSecs = d.Local.TimeoutSecs
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = d.Remote.BaseURL
	}
	if c.Remote.Model == "" {
		c.Remote.Model = d.Remote.Model
	}
	if c.Remote.TimeoutSecs == 0 {
		c.Remote.TimeoutSecs = d.Remote.TimeoutSecs
	}

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Server.AllowedIPs == nil {
		c.Server.AllowedIPs = []string{}
	}

	if c.Connectors.Workspace == "" {
		c.Connectors.Workspace = d.Connectors.Workspace
	}
	if c.Connectors.Database == "" {
		c.Connectors.Database = d.Connectors.Database
	}
	if c.Connectors.Timezone == "" {
		c.Connectors.Timezone = d.Connectors.Timezone
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Migrate upgrades configs written by older versions. 1.x files kept the
// remote key under [cloud] for OpenRouter and named the routing mode
// default_mode. Files newer than CurrentVersion's major are rejected.
func (c *Config) Migrate() error {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("invalid config version %q: %w", c.Version, err)
	}
	current := semver.MustParse(CurrentVersion)
	if v.Major() > current.Major() {
		return fmt.Errorf("config version %s is newer than supported version %s", v, current)
	}

	if v.LessThan(semver.MustParse("2.0.0")) {
		if c.Routing.Mode == "" && c.Routing.DefaultMode != "" {
			c.Routing.Mode = c.Routing.DefaultMode
		}
		if c.Local.Model == "" && c.Local.OllamaModel != "" {
			c.Local.Model = c.Local.OllamaModel
		}
		if c.Cloud != nil && c.Cloud.OpenRouterKey != "" && c.Remote.APIKey == "" {
			c.Remote.APIKey = c.Cloud.OpenRouterKey
			if c.Remote.BaseURL == "" {
				c.Remote.BaseURL = legacyOpenRouterURL
			}
			if c.Remote.Model == "" {
				c.Remote.Model = c.Cloud.DefaultModel
			}
		}
	}

	c.Routing.DefaultMode = ""
	c.Local.OllamaModel = ""
	c.Cloud = nil
	c.Version = CurrentVersion
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LLAMA2_MODEL: local.model
//   - OLLAMA_HOST: local.ollama_url (a bare host:port gets http://)
//   - OPENAI_API_KEY: remote.api_key
//   - OPENAI_MODEL: remote.model
//   - OPENAI_BASE_URL: remote.base_url
//   - PIZZA_LIVE_MODE: connectors.pizza_live
//   - RIGRUN_ASSIST_MODE: routing.mode
//   - RIGRUN_ASSIST_PARANOID: routing.paranoid
//   - RIGRUN_ASSIST_PORT: server.port
//   - RIGRUN_ASSIST_TOKEN: server.auth_token
func (c *Config) ApplyEnvOverrides() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("LLAMA2_MODEL"); v != "" {
		c.Local.Model = v
	}
	if v := getenv("OLLAMA_HOST"); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		c.Local.OllamaURL = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := getenv("OPENAI_MODEL"); v != "" {
		c.Remote.Model = v
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := getenv("PIZZA_LIVE_MODE"); v != "" {
		c.Connectors.PizzaLive = parseBool(v)
	}
	if v := getenv("RIGRUN_ASSIST_MODE"); v != "" {
		c.Routing.Mode = v
	}
	if v := getenv("RIGRUN_ASSIST_PARANOID"); v != "" {
		c.Routing.Paranoid = parseBool(v)
	}
	if v := getenv("RIGRUN_ASSIST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring RIGRUN_ASSIST_PORT=%q: not a number\n", v)
		}
	}
	if v := getenv("RIGRUN_ASSIST_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'`)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Location returns the connector time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Connectors.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Seconds converts a *Secs field to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedIPs != nil {
		clone.Server.AllowedIPs = append([]string{}, c.Server.AllowedIPs...)
	}
	if c.Cloud != nil {
		legacy := *c.Cloud
		clone.Cloud = &legacy
	}
	return &clone
}

// String returns the config as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Remote.APIKey != "" {
		safe.Remote.APIKey = "[REDACTED]"
	}
	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// ErrConfigExists is returned by Init when path already exists.
var ErrConfigExists = errors.New("config file already exists")

// Init writes the default config to path unless a file is already there.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return ErrConfigExists
	}
	return SaveTOML(Default(), path)
}
