/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time and never written back.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

// StorageConfig selects the key-value medium the two libraries are persisted to.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // "file" | "sqlite" | "memory"
	Dir         string `yaml:"dir"`     // empty = DataDir()
	BackupsKeep int    `yaml:"backups_keep"`
	HistoryKeep int    `yaml:"history_keep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// ExportConfig carries defaults for the export commands.
type ExportConfig struct {
	PDFFont  string `yaml:"pdf_font"` // path to a UTF-8 TTF; empty = core Helvetica
	Language string `yaml:"language"`
	Author   string `yaml:"author"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
	Export        ExportConfig  `yaml:"export"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Storage:       StorageConfig{Backend: "file", BackupsKeep: 20, HistoryKeep: 50},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Export:        ExportConfig{Language: "zh-TW"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "DRAFTBOOK_CONFIG"
	EnvTelemetryOptIn = "DRAFTBOOK_TELEMETRY_OPT_IN"
	EnvTheme          = "DRAFTBOOK_THEME"
	EnvBackend        = "DRAFTBOOK_BACKEND"
	EnvDataDir        = "DRAFTBOOK_DATA_DIR"
	EnvBackupsKeep    = "DRAFTBOOK_BACKUPS_KEEP"
	EnvHistoryKeep    = "DRAFTBOOK_HISTORY_KEEP"
	EnvLogLevel       = "DRAFTBOOK_LOG_LEVEL"
	EnvLogFormat      = "DRAFTBOOK_LOG_FORMAT"
	EnvLogSource      = "DRAFTBOOK_LOG_SOURCE"
	EnvLogFile        = "DRAFTBOOK_LOG_FILE"
	EnvPDFFont        = "DRAFTBOOK_PDF_FONT"
)

// envKeys maps dotted config keys to the variable that overrides them.
var envKeys = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.theme":            EnvTheme,
	"storage.backend":          EnvBackend,
	"storage.dir":              EnvDataDir,
	"storage.backups_keep":     EnvBackupsKeep,
	"storage.history_keep":     EnvHistoryKeep,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
	"export.pdf_font":          EnvPDFFont,
}

func userBase(win, mac, unix string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, win)
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", mac)
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve home directory")
		}
		base = filepath.Join(home, unix)
	}
	return base, nil
}

// ConfigPath returns the per-user config file path. DRAFTBOOK_CONFIG replaces it entirely.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := userBase("Draftbook", "Draftbook", filepath.Join(".config", "draftbook"))
	if err != nil {
		return "", fmt.Errorf("cannot resolve config directory: %w", err)
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the default directory holding the persisted libraries.
func DataDir() (string, error) {
	base, err := userBase("Draftbook", "Draftbook", filepath.Join(".local", "share", "draftbook"))
	if err != nil {
		return "", fmt.Errorf("cannot resolve data directory: %w", err)
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "freebsd" && runtime.GOOS != "openbsd" {
		base = filepath.Join(base, "data")
	}
	return base, nil
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// A malformed file is reported but the defaults plus overrides are still returned.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		} else {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		loadErr = fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, loadErr
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
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
	return os.WriteFile(path, data, 0o600)
}

// ResolvedDataDir returns Storage.Dir or the default data directory.
func (c AppConfig) ResolvedDataDir() (string, error) {
	if d := strings.TrimSpace(c.Storage.Dir); d != "" {
		return d, nil
	}
	return DataDir()
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); v != "" {
		dst.Storage.Backend = v
	}
	if v := strings.TrimSpace(src.Storage.Dir); v != "" {
		dst.Storage.Dir = v
	}
	if src.Storage.BackupsKeep > 0 {
		dst.Storage.BackupsKeep = src.Storage.BackupsKeep
	}
	if src.Storage.HistoryKeep > 0 {
		dst.Storage.HistoryKeep = src.Storage.HistoryKeep
	}
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
	if v := strings.TrimSpace(src.Export.PDFFont); v != "" {
		dst.Export.PDFFont = v
	}
	if v := strings.TrimSpace(src.Export.Language); v != "" {
		dst.Export.Language = v
	}
	if v := strings.TrimSpace(src.Export.Author); v != "" {
		dst.Export.Author = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(name string) string { return strings.TrimSpace(os.Getenv(name)) }
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := env(EnvTheme); v != "" {
		cfg.General.Theme = strings.ToLower(v)
	}
	if v := env(EnvBackend); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := env(EnvDataDir); v != "" {
		cfg.Storage.Dir = v
	}
	if v := env(EnvBackupsKeep); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Storage.BackupsKeep = n
		}
	}
	if v := env(EnvHistoryKeep); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Storage.HistoryKeep = n
		}
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
	if v := env(EnvPDFFont); v != "" {
		cfg.Export.PDFFont = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
