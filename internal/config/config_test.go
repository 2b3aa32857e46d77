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
	"os"
	"path/filepath"
	"testing"
)

// isolate points the config path at a temp file and clears the overrides under test.
func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	for _, name := range envKeys {
		t.Setenv(name, "")
	}
	return p
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.BackupsKeep != 20 || cfg.Storage.HistoryKeep != 50 {
		t.Fatalf("unexpected storage defaults: %#v", cfg.Storage)
	}
	if cfg.General.TelemetryOptIn {
		t.Fatalf("telemetry must default to off")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Dir = "/srv/draftbook"
	cfg.Export.Author = "Lin"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Storage.Backend != "sqlite" || got.Storage.Dir != "/srv/draftbook" || got.Export.Author != "Lin" {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if d, _ := got.ResolvedDataDir(); d != "/srv/draftbook" {
		t.Fatalf("ResolvedDataDir = %q", d)
	}
}

func TestLoadMalformedFileKeepsDefaults(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("general: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Storage.Backend != "file" {
		t.Fatalf("defaults not kept: %#v", cfg.Storage)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesStorage(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackend, "SQLite")
	t.Setenv(EnvDataDir, "/tmp/db")
	t.Setenv(EnvHistoryKeep, "7")
	t.Setenv(EnvBackupsKeep, "nope")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Dir != "/tmp/db" || cfg.Storage.HistoryKeep != 7 {
		t.Fatalf("storage overrides not applied: %#v", cfg.Storage)
	}
	if cfg.Storage.BackupsKeep != 20 {
		t.Fatalf("invalid number should be ignored, got %d", cfg.Storage.BackupsKeep)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/draftbook.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/draftbook.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/draftbook.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/draftbook.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	isolate(t)
	if _, ok := EnvOverrideFor("storage.backend"); ok {
		t.Fatalf("no override expected")
	}
	t.Setenv(EnvBackend, "memory")
	if name, ok := EnvOverrideFor("storage.backend"); !ok || name != EnvBackend {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("unknown.key"); ok {
		t.Fatalf("unknown key must not report an override")
	}
}
