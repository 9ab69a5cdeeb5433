// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for hms.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.hms/config.toml
//   - ~/.hms/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/hms-tui/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// Session storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete hms configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	API     APIConfig     `toml:"api" json:"api"`
	Session SessionConfig `toml:"session" json:"session"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// APIConfig describes how to reach the backend.
type APIConfig struct {
	// BaseURL is the API root, e.g. http://localhost:3001/api
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds a single request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RestoreTimeoutSecs bounds the /auth/me call made at startup
	RestoreTimeoutSecs int `toml:"restore_timeout_secs" json:"restore_timeout_secs"`
}

// SessionConfig controls the signed-in session.
type SessionConfig struct {
	DurationHours int `toml:"duration_hours" json:"duration_hours"`
	// Backend is "sqlite", "file" or "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path overrides the storage location; empty derives it from the backend
	Path string `toml:"path" json:"path"`
	// EncryptToken seals the bearer token with a local master key
	EncryptToken bool   `toml:"encrypt_token" json:"encrypt_token"`
	KeyPath      string `toml:"key_path" json:"key_path"`
	// VerifyRole rejects logins whose account role differs from the portal
	VerifyRole          bool `toml:"verify_role" json:"verify_role"`
	RefreshIntervalSecs int  `toml:"refresh_interval_secs" json:"refresh_interval_secs"`
	// Watch follows logins and logouts made by other hms processes
	Watch          bool `toml:"watch" json:"watch"`
	WarningMinutes int  `toml:"warning_minutes" json:"warning_minutes"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme         string `toml:"theme" json:"theme"`
	ShowStatusBar bool   `toml:"show_status_bar" json:"show_status_bar"`
}

// LoggingConfig controls diagnostics and the audit trail.
type LoggingConfig struct {
	Path      string `toml:"path" json:"path"`
	Audit     bool   `toml:"audit" json:"audit"`
	AuditPath string `toml:"audit_path" json:"audit_path"`
	Verbose   bool   `toml:"verbose" json:"verbose"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:            "http://localhost:3001/api",
			TimeoutSecs:        15,
			RestoreTimeoutSecs: 5,
		},
		Session: SessionConfig{
			DurationHours:       24,
			Backend:             BackendSQLite,
			EncryptToken:        true,
			VerifyRole:          true,
			RefreshIntervalSecs: 60,
			Watch:               true,
			WarningMinutes:      10,
		},
		UI: UIConfig{
			Theme:         "auto",
			ShowStatusBar: true,
		},
		Logging: LoggingConfig{
			Audit: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.hms, or $HMS_HOME when set.
func ConfigDir() (string, error) {
	if dir := os.Getenv("HMS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".hms"), nil
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

// EnsureConfigDir ensures the config directory exists.
// SECURITY: The directory holds the session store and master key.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, util.PrivateDirPerm)
}

// SessionPath returns where the session keyspace lives. Empty for the memory backend.
func (c *Config) SessionPath() (string, error) {
	if c.Session.Backend == BackendMemory {
		return "", nil
	}
	if c.Session.Path != "" {
		return expandHome(c.Session.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Session.Backend == BackendFile {
		return filepath.Join(dir, "session.json"), nil
	}
	return filepath.Join(dir, "session.db"), nil
}

// KeyPath returns the master key location.
func (c *Config) KeyPath() (string, error) {
	if c.Session.KeyPath != "" {
		return expandHome(c.Session.KeyPath)
	}
	return inConfigDir("master.key")
}

// LogPath returns the diagnostics log location.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return expandHome(c.Logging.Path)
	}
	return inConfigDir("logs", "hms.log")
}

// AuditPath returns the audit log location.
func (c *Config) AuditPath() (string, error) {
	if c.Logging.AuditPath != "" {
		return expandHome(c.Logging.AuditPath)
	}
	return inConfigDir("logs", "audit.log")
}

func inConfigDir(elem ...string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// DURATIONS
// =============================================================================

// SessionDuration returns the session length.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Session.DurationHours) * time.Hour
}

// RequestTimeout returns the per-request API timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// RestoreTimeout returns the startup restore timeout.
func (c *Config) RestoreTimeout() time.Duration {
	return time.Duration(c.API.RestoreTimeoutSecs) * time.Second
}

// RefreshInterval returns the minimum spacing between activity refreshes.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Session.RefreshIntervalSecs) * time.Second
}

// WarningWindow returns how long before expiry the status bar warns.
func (c *Config) WarningWindow() time.Duration {
	return time.Duration(c.Session.WarningMinutes) * time.Minute
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
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
// Environment overrides are applied last. A file that fails to parse is
// reported alongside the defaults so the caller can warn and continue.
func Load() (*Config, error) {
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// finish applies overrides, migration, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg. Keys absent from
// the file keep cfg's current values.
// SECURITY: Checks and fixes file permissions on load.
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
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
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

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
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

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# hms configuration file\n")
	buf.WriteString("# Generated by hms - edit with care\n")
	buf.WriteString("\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents a torn config on crash
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// API
	if c.API.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: "cannot be empty"})
	} else if u, err := url.Parse(c.API.BaseURL); err != nil {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: "scheme must be http or https"})
	} else if u.Host == "" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: "missing host"})
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 300 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "must be between 1 and 300"})
	}
	if c.API.RestoreTimeoutSecs < 1 || c.API.RestoreTimeoutSecs > 60 {
		errs = append(errs, ValidationError{Field: "api.restore_timeout_secs", Message: "must be between 1 and 60"})
	}

	// Session
	if c.Session.DurationHours < 1 || c.Session.DurationHours > 720 {
		errs = append(errs, ValidationError{Field: "session.duration_hours", Message: "must be between 1 and 720"})
	}
	switch c.Session.Backend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "session.backend",
			Message: fmt.Sprintf("must be one of sqlite, file, memory (got %q)", c.Session.Backend),
		})
	}
	if c.Session.RefreshIntervalSecs < 1 || c.Session.RefreshIntervalSecs > 3600 {
		errs = append(errs, ValidationError{Field: "session.refresh_interval_secs", Message: "must be between 1 and 3600"})
	}
	if c.Session.WarningMinutes < 0 {
		errs = append(errs, ValidationError{Field: "session.warning_minutes", Message: "cannot be negative"})
	} else if c.Session.DurationHours > 0 && c.Session.WarningMinutes >= c.Session.DurationHours*60 {
		errs = append(errs, ValidationError{Field: "session.warning_minutes", Message: "must be shorter than the session"})
	}

	// UI
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		errs = append(errs, ValidationError{Field: "ui.theme", Message: fmt.Sprintf("must be dark, light or auto (got %q)", c.UI.Theme)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.RestoreTimeoutSecs == 0 {
		c.API.RestoreTimeoutSecs = d.API.RestoreTimeoutSecs
	}
	if c.Session.DurationHours == 0 {
		c.Session.DurationHours = d.Session.DurationHours
	}
	if c.Session.Backend == "" {
		c.Session.Backend = d.Session.Backend
	}
	if c.Session.RefreshIntervalSecs == 0 {
		c.Session.RefreshIntervalSecs = d.Session.RefreshIntervalSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Migrate upgrades older config layouts in place.
func (c *Config) Migrate() error {
	switch c.Version {
	case "", CurrentVersion:
		c.Version = CurrentVersion
		c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
		c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
		c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
		return nil
	default:
		return fmt.Errorf("unsupported config version %q", c.Version)
	}
}

// ApplyEnvOverrides applies HMS_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("HMS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("HMS_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("HMS_SESSION_PATH"); v != "" {
		c.Session.Path = v
	}
	if v := os.Getenv("HMS_VERIFY_ROLE"); v != "" {
		c.Session.VerifyRole = parseBool(v)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// lookup walks a dot-notation key to its field.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// Get retrieves a configuration value using dot notation (e.g., "session.backend").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "session.backend").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if field.Kind() == reflect.Struct {
		return fmt.Errorf("cannot set section: %s", key)
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"api.base_url",
		"api.timeout_secs",
		"api.restore_timeout_secs",
		"session.duration_hours",
		"session.backend",
		"session.path",
		"session.encrypt_token",
		"session.key_path",
		"session.verify_role",
		"session.refresh_interval_secs",
		"session.watch",
		"session.warning_minutes",
		"ui.theme",
		"ui.show_status_bar",
		"logging.path",
		"logging.audit",
		"logging.audit_path",
		"logging.verbose",
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON for display.
// SECURITY: Credentials embedded in the API URL are redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if u, err := url.Parse(safe.API.BaseURL); err == nil && u.User != nil {
		u.User = url.User("[REDACTED]")
		safe.API.BaseURL = u.String()
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
