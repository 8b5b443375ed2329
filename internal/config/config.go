/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	Theme      string `yaml:"theme"` // "dark" | "light" | "plain"
	DebounceMs int    `yaml:"debounce_ms"`
}

// StyleConfig overrides one decoration class.
type StyleConfig struct {
	Foreground string `yaml:"fg,omitempty"`
	Background string `yaml:"bg,omitempty"`
	Bold       bool   `yaml:"bold,omitempty"`
	Italic     bool   `yaml:"italic,omitempty"`
	Underline  bool   `yaml:"underline,omitempty"`
	Faint      bool   `yaml:"faint,omitempty"`
}

type DecorateConfig struct {
	PlayableTags   []string               `yaml:"playable_tags"`
	UnknownSpeaker string                 `yaml:"unknown_speaker"`
	Styles         map[string]StyleConfig `yaml:"styles,omitempty"`
}

type QueryConfig struct {
	CacheSize int `yaml:"cache_size"`
	TimeoutMs int `yaml:"timeout_ms"`
}

type BackendConfig struct {
	// DSN is a Postgres connection string without the password; the password
	// lives in the OS keychain.
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Decorate      DecorateConfig `yaml:"decorate"`
	Query         QueryConfig    `yaml:"query"`
	Backend       BackendConfig  `yaml:"backend"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "dark", DebounceMs: 300},
		Decorate:      DecorateConfig{PlayableTags: []string{"BGM", "SFX", "VOICE"}, UnknownSpeaker: "UNKNOWN SPEAKER"},
		Query:         QueryConfig{CacheSize: 64, TimeoutMs: 2000},
		Backend:       BackendConfig{DSN: "", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "NVS_CONFIG"
	EnvTheme            = "NVS_THEME"
	EnvDebounceMs       = "NVS_DEBOUNCE_MS"
	EnvPlayableTags     = "NVS_PLAYABLE_TAGS"
	EnvUnknownSpeaker   = "NVS_UNKNOWN_SPEAKER"
	EnvQueryCacheSize   = "NVS_QUERY_CACHE_SIZE"
	EnvQueryTimeoutMs   = "NVS_QUERY_TIMEOUT_MS"
	EnvBackendDSN       = "NVS_PG_DSN"
	EnvBackendTimeoutMs = "NVS_BACKEND_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "NVS_LOG_LEVEL"
	EnvLogFormat = "NVS_LOG_FORMAT"
	EnvLogSource = "NVS_LOG_SOURCE"
	EnvLogFile   = "NVS_LOG_FILE"
)

// ConfigPath returns the per-user config file path. NVS_CONFIG replaces it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "NovelScript")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "NovelScript")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "novelscript")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "novelscript")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend password from the keyring (returned separately, never kept in the struct).
// A malformed config file is reported but the defaults are still returned.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	secret, _ := loadSecret()
	return cfg, secret, parseErr
}

// Save writes the user config YAML and persists the secret into the OS keyring (if non-empty).
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringSecret, secret); err != nil {
			return fmt.Errorf("store backend secret: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = strings.ToLower(strings.TrimSpace(src.General.Theme))
	}
	if src.General.DebounceMs > 0 {
		dst.General.DebounceMs = src.General.DebounceMs
	}
	if src.Decorate.PlayableTags != nil {
		dst.Decorate.PlayableTags = append([]string(nil), src.Decorate.PlayableTags...)
	}
	if strings.TrimSpace(src.Decorate.UnknownSpeaker) != "" {
		dst.Decorate.UnknownSpeaker = strings.TrimSpace(src.Decorate.UnknownSpeaker)
	}
	if len(src.Decorate.Styles) > 0 {
		dst.Decorate.Styles = make(map[string]StyleConfig, len(src.Decorate.Styles))
		for k, v := range src.Decorate.Styles {
			dst.Decorate.Styles[k] = v
		}
	}
	if src.Query.CacheSize != 0 {
		dst.Query.CacheSize = src.Query.CacheSize
	}
	if src.Query.TimeoutMs != 0 {
		dst.Query.TimeoutMs = src.Query.TimeoutMs
	}
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTheme)); v != "" {
		cfg.General.Theme = strings.ToLower(v)
	}
	envInt(EnvDebounceMs, &cfg.General.DebounceMs)
	if v := strings.TrimSpace(os.Getenv(EnvPlayableTags)); v != "" {
		var tags []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		cfg.Decorate.PlayableTags = tags
	}
	if v := strings.TrimSpace(os.Getenv(EnvUnknownSpeaker)); v != "" {
		cfg.Decorate.UnknownSpeaker = v
	}
	envInt(EnvQueryCacheSize, &cfg.Query.CacheSize)
	envInt(EnvQueryTimeoutMs, &cfg.Query.TimeoutMs)
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	envInt(EnvBackendTimeoutMs, &cfg.Backend.TimeoutMs)
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"general.theme":            EnvTheme,
	"general.debounce_ms":      EnvDebounceMs,
	"decorate.playable_tags":   EnvPlayableTags,
	"decorate.unknown_speaker": EnvUnknownSpeaker,
	"query.cache_size":         EnvQueryCacheSize,
	"query.timeout_ms":         EnvQueryTimeoutMs,
	"backend.dsn":              EnvBackendDSN,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Debounce returns the reparse debounce interval.
func (g GeneralConfig) Debounce() time.Duration {
	if g.DebounceMs <= 0 {
		return time.Duration(Defaults().General.DebounceMs) * time.Millisecond
	}
	return time.Duration(g.DebounceMs) * time.Millisecond
}

// Timeout returns the query evaluation bound.
func (q QueryConfig) Timeout() time.Duration {
	if q.TimeoutMs <= 0 {
		return time.Duration(Defaults().Query.TimeoutMs) * time.Millisecond
	}
	return time.Duration(q.TimeoutMs) * time.Millisecond
}

// EffectiveTimeout returns the backend timeout, falling back to the default.
func (b BackendConfig) EffectiveTimeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ConnString returns the DSN with the password inserted. URL style
// ("postgres://user@host/db") and keyword style ("host=... user=...")
// connection strings are both accepted.
func (b BackendConfig) ConnString(password string) string {
	dsn := strings.TrimSpace(b.DSN)
	if password == "" || dsn == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		if _, set := u.User.Password(); set {
			return dsn
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String()
	}
	if strings.Contains(dsn, "password=") {
		return dsn
	}
	return dsn + " password=" + password
}
