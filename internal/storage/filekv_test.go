/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileKVMissingKey(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	v, ok, err := kv.Get("draftbook_books")
	if err != nil || ok || v != "" {
		t.Fatalf("Get on fresh dir = %q %v %v", v, ok, err)
	}
}

func TestFileKVSetGetAndBackup(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir, 0)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	if err := kv.Set("draftbook_books", `[]`); err != nil {
		t.Fatalf("Set 1: %v", err)
	}
	if err := kv.Set("draftbook_books", `[{"id":"1"}]`); err != nil {
		t.Fatalf("Set 2: %v", err)
	}
	v, ok, err := kv.Get("draftbook_books")
	if err != nil || !ok || v != `[{"id":"1"}]` {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	baks, err := kv.Backups("draftbook_books")
	if err != nil || len(baks) != 1 {
		t.Fatalf("backups = %v err=%v", baks, err)
	}
	if !strings.HasPrefix(filepath.Base(baks[0]), "draftbook_books.json.") {
		t.Fatalf("unexpected backup name %s", baks[0])
	}
	b, _ := os.ReadFile(baks[0])
	if string(b) != `[]` {
		t.Fatalf("backup holds %q, want previous value", b)
	}
}

func TestFileKVFallsBackToLatestBackupOnCorruption(t *testing.T) {
	dir := t.TempDir()
	kv, _ := NewFileKV(dir, 0)
	_ = kv.Set("draftbook_comics", `["old"]`)
	_ = kv.Set("draftbook_comics", `["new"]`)
	if err := os.WriteFile(kv.Path("draftbook_comics"), []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	v, ok, err := kv.Get("draftbook_comics")
	if err != nil || !ok || v != `["old"]` {
		t.Fatalf("Get after corruption = %q %v %v", v, ok, err)
	}
}

func TestFileKVCorruptionWithoutBackupIsAnError(t *testing.T) {
	dir := t.TempDir()
	kv, _ := NewFileKV(dir, 0)
	if err := os.WriteFile(kv.Path("draftbook_books"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := kv.Get("draftbook_books"); err == nil {
		t.Fatalf("expected error for corrupt file without backups")
	}
}

func TestFileKVPrunesBackups(t *testing.T) {
	kv, _ := NewFileKV(t.TempDir(), 2)
	for i := 0; i < 6; i++ {
		if err := kv.Set("k", `{"n":`+string(rune('0'+i))+`}`); err != nil {
			t.Fatalf("Set %d: %v", i, err)
		}
	}
	baks, _ := kv.Backups("k")
	if len(baks) != 2 {
		t.Fatalf("kept %d backups, want 2", len(baks))
	}
	b, _ := os.ReadFile(baks[1])
	if string(b) != `{"n":4}` {
		t.Fatalf("newest backup = %s", b)
	}
}

func TestFileKVRejectsBadKeys(t *testing.T) {
	kv, _ := NewFileKV(t.TempDir(), 0)
	for _, k := range []string{"", "../x", "a/b", ".."} {
		if err := kv.Set(k, "{}"); err == nil {
			t.Fatalf("Set(%q) should fail", k)
		}
	}
}

func TestAutosaveCrashSnapshot(t *testing.T) {
	dir := t.TempDir()
	p, err := AutosaveCrashSnapshot(dir, "draftbook_books", `[]`)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot: %v", err)
	}
	if filepath.Dir(p) != filepath.Join(dir, CrashDirName) {
		t.Fatalf("unexpected path %s", p)
	}
	if b, err := os.ReadFile(p); err != nil || string(b) != `[]` {
		t.Fatalf("read crash snapshot: %q %v", b, err)
	}
}
