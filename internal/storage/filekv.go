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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "draftbook/internal/log"
)

const (
	BackupsDirName = "backups"
	CrashDirName   = "crash"

	// DefaultBackupsKeep is the number of backups kept per key when FileKV.Keep is zero.
	DefaultBackupsKeep = 20

	backupStamp = "20060102-150405.000000000"
)

// FileKV stores each key as <Dir>/<key>.json. Values must be JSON documents.
//
// Every Set copies the current file to <Dir>/backups/<key>.json.<stamp>.bak before the new
// value is written to a temp file and renamed over the old one. Get falls back to the newest
// backup when the current file is missing or not valid JSON.
type FileKV struct {
	Dir  string
	Keep int // backups kept per key; 0 means DefaultBackupsKeep, <0 keeps all

	log *slog.Logger
}

// NewFileKV creates dir (and its backups folder) and returns a store rooted there.
func NewFileKV(dir string, keep int) (*FileKV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileKV{Dir: dir, Keep: keep, log: applog.WithComponent("storage").With(slog.String("backend", "file"))}, nil
}

// Path returns the file that holds key.
func (k *FileKV) Path(key string) string { return filepath.Join(k.Dir, key+".json") }

func (k *FileKV) logger() *slog.Logger {
	if k.log == nil {
		k.log = applog.WithComponent("storage").With(slog.String("backend", "file"))
	}
	return k.log
}

func (k *FileKV) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(k.Path(key))
	switch {
	case err == nil && json.Valid(b):
		return string(b), true, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		k.logger().Warn("read failed, trying backup", slog.String("key", key), slog.Any("err", err))
	case err == nil:
		k.logger().Warn("current file is not valid JSON, trying backup", slog.String("key", key))
		err = errors.New("invalid JSON")
	}
	v, ok, berr := k.latestBackup(key)
	if berr != nil {
		if err == nil {
			return "", false, berr
		}
		return "", false, fmt.Errorf("read %s: %w; backup attempt: %v", key, err, berr)
	}
	if !ok && err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read %s: %w; no backups", key, err)
	}
	return v, ok, nil
}

func (k *FileKV) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	path := k.Path(key)
	bdir := filepath.Join(k.Dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.json.%s.bak", key, time.Now().Format(backupStamp)))
		if err := copyFile(path, bpath); err != nil {
			return fmt.Errorf("backup %s: %w", key, err)
		}
		k.prune(key)
	}
	if err := writeFileAtomic(path, []byte(value)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Backups lists the backup files of key, oldest first.
func (k *FileKV) Backups(key string) ([]string, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	ents, err := os.ReadDir(filepath.Join(k.Dir, BackupsDirName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := key + ".json."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(k.Dir, BackupsDirName, name))
		}
	}
	sort.Strings(out) // the stamp sorts lexicographically
	return out, nil
}

func (k *FileKV) prune(key string) {
	keep := k.Keep
	if keep == 0 {
		keep = DefaultBackupsKeep
	}
	if keep < 0 {
		return
	}
	all, err := k.Backups(key)
	if err != nil || len(all) <= keep {
		return
	}
	for _, p := range all[:len(all)-keep] {
		if err := os.Remove(p); err != nil {
			k.logger().Warn("prune backup failed", slog.String("path", p), slog.Any("err", err))
		}
	}
}

// latestBackup returns the newest backup of key that holds valid JSON.
func (k *FileKV) latestBackup(key string) (string, bool, error) {
	all, err := k.Backups(key)
	if err != nil {
		return "", false, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		b, err := os.ReadFile(all[i])
		if err != nil || !json.Valid(b) {
			continue
		}
		k.logger().Info("restored from backup", slog.String("key", key), slog.String("backup", filepath.Base(all[i])))
		return string(b), true, nil
	}
	return "", false, nil
}

// AutosaveCrashSnapshot writes value to <dir>/crash/<key>.<stamp>.json without touching the
// regular file or its backups. It returns the written path.
func AutosaveCrashSnapshot(dir, key, value string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	cdir := filepath.Join(dir, CrashDirName)
	if err := os.MkdirAll(cdir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	p := filepath.Join(cdir, fmt.Sprintf("%s.%s.json", key, time.Now().Format("20060102-150405")))
	if err := writeFileAtomic(p, []byte(value)); err != nil {
		return "", err
	}
	return p, nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", err)
	}
	// Windows cannot rename over an existing file
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
