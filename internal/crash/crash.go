/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic at an entry point into a crash report plus an autosave
// of whatever state the caller can still serialize.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	applog "draftbook/internal/log"
	"draftbook/internal/storage"
	"draftbook/internal/telemetry"
	"draftbook/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Snapshotter returns the current persisted values keyed by storage key.
// It is called after a panic and must not take locks the panicking goroutine may hold.
type Snapshotter interface {
	CrashSnapshots() map[string]string
}

// Target tells Recover where to write the report and what to autosave.
// Both fields are optional.
type Target struct {
	Dir   string
	State Snapshotter
}

// Recover captures a panic, logs it with a stacktrace, writes a report file and
// autosaves every snapshot from t.State under <Dir>/crash.
//
// Usage: defer crash.Recover(target)
func Recover(t *Target) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(t, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	for _, path := range autosave(t, l) {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func autosave(t *Target, l *slog.Logger) []string {
	if t == nil || t.State == nil || t.Dir == "" {
		return nil
	}
	snaps := t.State.CrashSnapshots()
	keys := make([]string, 0, len(snaps))
	for k := range snaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var paths []string
	for _, k := range keys {
		path, err := storage.AutosaveCrashSnapshot(t.Dir, k, snaps[k])
		if err != nil {
			l.Error("autosave crash snapshot failed", slog.String("key", k), slog.Any("err", err))
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if t != nil && t.Dir != "" {
		dir = filepath.Join(t.Dir, storage.CrashDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "draftbook Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Dir != "" {
		_, _ = fmt.Fprintf(&buf, "DataDir: %s\n", t.Dir)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// no-op unless the user opted in
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
