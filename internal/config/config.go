// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/witness-lens/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Mode values select how messages reach the backend.
const (
	// ModePush sends over the push channel and streams answers back.
	ModePush = "push"
	// ModeLegacy posts each message over REST and waits for the full reply.
	ModeLegacy = "legacy"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete witness-lens configuration.
type Config struct {
	Version string `toml:"version" json:"version"`
	Mode    string `toml:"mode" json:"mode"`

	API      APIConfig      `toml:"api" json:"api"`
	Push     PushConfig     `toml:"push" json:"push"`
	Planning PlanningConfig `toml:"planning" json:"planning"`
	Session  SessionConfig  `toml:"session" json:"session"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Log      LogConfig      `toml:"log" json:"log"`
	Auth     AuthConfig     `toml:"auth" json:"auth"`
}

// APIConfig configures the REST conversation API.
type APIConfig struct {
	BaseURL     string `toml:"base_url" json:"base_url"`
	UserHeader  string `toml:"user_header" json:"user_header"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int    `toml:"max_retries" json:"max_retries"`
	// RetryDelayMs is the pause between retries of idempotent requests.
	RetryDelayMs int `toml:"retry_delay_ms" json:"retry_delay_ms"`
	// RequestsPerSecond caps outgoing REST calls. 0 disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// PushConfig configures the push channel.
type PushConfig struct {
	URL              string `toml:"url" json:"url"`
	PingIntervalSecs int    `toml:"ping_interval_secs" json:"ping_interval_secs"`
	BackoffInitialMs int    `toml:"backoff_initial_ms" json:"backoff_initial_ms"`
	BackoffMaxMs     int    `toml:"backoff_max_ms" json:"backoff_max_ms"`
	OutboxSize       int    `toml:"outbox_size" json:"outbox_size"`
	// QueueWhileOffline keeps outgoing frames queued while reconnecting
	// instead of failing the send.
	QueueWhileOffline bool `toml:"queue_while_offline" json:"queue_while_offline"`
}

// PlanningConfig configures the calendar endpoint.
type PlanningConfig struct {
	URL string `toml:"url" json:"url"`
}

// SessionConfig configures local session persistence.
type SessionConfig struct {
	DataDir string `toml:"data_dir" json:"data_dir"`
	// MintIDs creates a conversation id up front when the user starts a new
	// conversation instead of waiting on the server.
	MintIDs bool `toml:"mint_ids" json:"mint_ids"`
	// User forces the signed-in user, skipping the login view.
	User string `toml:"user" json:"user"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme          string `toml:"theme" json:"theme"`
	ShowHistory    bool   `toml:"show_history" json:"show_history"`
	ShowReferences bool   `toml:"show_references" json:"show_references"`
	Markdown       bool   `toml:"markdown" json:"markdown"`
	ErrorToastSecs int    `toml:"error_toast_secs" json:"error_toast_secs"`
	WordWrap       int    `toml:"word_wrap" json:"word_wrap"`
}

// LogConfig controls the log sink.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File overrides <data_dir>/witness-lens.log.
	File string `toml:"file" json:"file"`
}

// AuthConfig maps user names to bcrypt password hashes for the login view.
type AuthConfig struct {
	Users map[string]string `toml:"users" json:"users"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Mode:    ModePush,

		API: APIConfig{
			BaseURL:           "http://localhost:4000/api",
			UserHeader:        "X-User-Id",
			TimeoutSecs:       30,
			MaxRetries:        2,
			RetryDelayMs:      500,
			RequestsPerSecond: 10,
			Burst:             5,
		},

		Push: PushConfig{
			URL:               "ws://localhost:4000/ws",
			PingIntervalSecs:  30,
			BackoffInitialMs:  1000,
			BackoffMaxMs:      5000,
			OutboxSize:        64,
			QueueWhileOffline: false,
		},

		Session: SessionConfig{
			MintIDs: true,
		},

		UI: UIConfig{
			Theme:          "auto",
			ShowHistory:    true,
			ShowReferences: true,
			Markdown:       true,
			ErrorToastSecs: 10,
			WordWrap:       80,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the witness-lens configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".witness-lens"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory holding the session file, cache database and
// log file.
func (c *Config) DataDir() string {
	if c.Session.DataDir != "" {
		return c.Session.DataDir
	}
	dir, err := ConfigDir()
	if err != nil {
		return ".witness-lens"
	}
	return dir
}

// SessionPath is where the client session is persisted.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir(), "session.json")
}

// CachePath is the SQLite database used by the local conversation cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir(), "cache.db")
}

// LogPath is the log file used while the TUI owns the terminal.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir(), "witness-lens.log")
}

// HistoryPath is the liner history file of the line-mode chat.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir(), "chat_history")
}

// Legacy reports whether the request/response mode is selected.
func (c *Config) Legacy() bool {
	return c.Mode == ModeLegacy
}

// RequestTimeout returns the REST timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// ErrorToastDuration returns how long error toasts stay on screen.
func (c *Config) ErrorToastDuration() time.Duration {
	return time.Duration(c.UI.ErrorToastSecs) * time.Second
}

// ensureSecurePermissions tightens config files to 0600; [auth.users] holds
// password hashes.
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

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are decoded as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load JSON config from %s", path)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load TOML config from %s", path)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, migration, defaults, and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.Migrate()
	fillDefaults(c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not ensure secure permissions")
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	for _, key := range md.Undecoded() {
		log.Warn().Str("key", key.String()).Str("path", path).Msg("unknown config key ignored")
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not ensure secure permissions")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}

	// API
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.UserHeader == "" {
		cfg.API.UserHeader = defaults.API.UserHeader
	}
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.RetryDelayMs == 0 {
		cfg.API.RetryDelayMs = defaults.API.RetryDelayMs
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = defaults.API.Burst
	}

	// Push
	if cfg.Push.URL == "" {
		cfg.Push.URL = defaults.Push.URL
	}
	if cfg.Push.PingIntervalSecs == 0 {
		cfg.Push.PingIntervalSecs = defaults.Push.PingIntervalSecs
	}
	if cfg.Push.BackoffInitialMs == 0 {
		cfg.Push.BackoffInitialMs = defaults.Push.BackoffInitialMs
	}
	if cfg.Push.BackoffMaxMs == 0 {
		cfg.Push.BackoffMaxMs = defaults.Push.BackoffMaxMs
	}
	if cfg.Push.OutboxSize == 0 {
		cfg.Push.OutboxSize = defaults.Push.OutboxSize
	}

	// Planning follows the API host unless set explicitly.
	if cfg.Planning.URL == "" {
		cfg.Planning.URL = strings.TrimRight(cfg.API.BaseURL, "/") + "/planning"
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.ErrorToastSecs == 0 {
		cfg.UI.ErrorToastSecs = defaults.UI.ErrorToastSecs
	}
	if cfg.UI.WordWrap == 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# witness-lens configuration file\n")
	sb.WriteString("# Generated by witness-lens - edit with care\n")
	sb.WriteString("#\n")
	sb.WriteString("# [auth.users] maps user names to bcrypt hashes; leave it empty to\n")
	sb.WriteString("# accept any user name at the login view.\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Mode != ModePush && c.Mode != ModeLegacy {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: push, legacy", c.Mode),
		})
	}

	errs = append(errs, validateURL("api.base_url", c.API.BaseURL, "http", "https")...)
	errs = append(errs, validateURL("push.url", c.Push.URL, "ws", "wss")...)
	errs = append(errs, validateURL("planning.url", c.Planning.URL, "http", "https")...)

	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "cannot be negative"})
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.max_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.API.MaxRetries),
		})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_second", Message: "cannot be negative"})
	}
	if c.Push.BackoffMaxMs < c.Push.BackoffInitialMs {
		errs = append(errs, ValidationError{
			Field:   "push.backoff_max_ms",
			Message: fmt.Sprintf("must be >= backoff_initial_ms (%d), got %d", c.Push.BackoffInitialMs, c.Push.BackoffMaxMs),
		})
	}
	if c.Push.OutboxSize < 1 {
		errs = append(errs, ValidationError{Field: "push.outbox_size", Message: "must be at least 1"})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: trace, debug, info, warn, error, disabled", c.Log.Level),
		})
	}

	for user, hash := range c.Auth.Users {
		if !strings.HasPrefix(hash, "$2") {
			errs = append(errs, ValidationError{
				Field:   "auth.users." + user,
				Message: "must be a bcrypt hash",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) ValidateErrors {
	u, err := url.Parse(raw)
	if err != nil {
		return ValidateErrors{{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}}
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return ValidateErrors{{Field: field, Message: "missing host"}}
			}
			return nil
		}
	}
	return ValidateErrors{{
		Field:   field,
		Message: fmt.Sprintf("scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme),
	}}
}

// Migrate rewrites values written by older releases.
func (c *Config) Migrate() {
	// "rest" was the first name of the request/response mode.
	if strings.EqualFold(c.Mode, "rest") {
		c.Mode = ModeLegacy
	}
	c.Mode = strings.ToLower(c.Mode)

	// Push URLs were once configured as socket.io http endpoints.
	switch {
	case strings.HasPrefix(c.Push.URL, "http://"):
		c.Push.URL = "ws://" + strings.TrimPrefix(c.Push.URL, "http://")
	case strings.HasPrefix(c.Push.URL, "https://"):
		c.Push.URL = "wss://" + strings.TrimPrefix(c.Push.URL, "https://")
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - WITNESS_LENS_API_URL: overrides api.base_url
//   - WITNESS_LENS_WS_URL: overrides push.url
//   - WITNESS_LENS_PLANNING_URL: overrides planning.url
//   - WITNESS_LENS_USER: overrides session.user
//   - WITNESS_LENS_LOG_LEVEL: overrides log.level
//   - WITNESS_LENS_DATA_DIR: overrides session.data_dir
//   - WITNESS_LENS_LEGACY: "1" or "true" selects the legacy mode
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WITNESS_LENS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("WITNESS_LENS_WS_URL"); v != "" {
		c.Push.URL = v
	}
	if v := os.Getenv("WITNESS_LENS_PLANNING_URL"); v != "" {
		c.Planning.URL = v
	}
	if v := os.Getenv("WITNESS_LENS_USER"); v != "" {
		c.Session.User = v
	}
	if v := os.Getenv("WITNESS_LENS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WITNESS_LENS_DATA_DIR"); v != "" {
		c.Session.DataDir = v
	}
	if v := os.Getenv("WITNESS_LENS_LEGACY"); v != "" {
		if v == "1" || strings.EqualFold(v, "true") {
			c.Mode = ModeLegacy
		} else {
			c.Mode = ModePush
		}
	}
}

// =============================================================================
// GET (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value by its TOML key path, e.g.
// "api.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if part == "users" {
				return "[REDACTED]", nil
			}
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// String returns the config as indented JSON with password hashes redacted.
func (c *Config) String() string {
	safe := *c
	if len(c.Auth.Users) > 0 {
		safe.Auth.Users = make(map[string]string, len(c.Auth.Users))
		for user := range c.Auth.Users {
			safe.Auth.Users[user] = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("config load failed, using defaults")
			cfg = Default()
			fillDefaults(cfg)
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
