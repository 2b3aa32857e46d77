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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "draftbook/internal/log"
	"draftbook/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DBFileName is the SQLite file used by the sqlite backend inside the data directory.
	DBFileName = "draftbook.sqlite"

	// DefaultHistoryKeep is the number of revisions kept per key when SQLiteKV.Keep is zero.
	DefaultHistoryKeep = 50

	// schemaVersion tracks the local SQLite schema. Bump it together with a migration step.
	// New databases start at baseSchema and are migrated forward like old ones.
	schemaVersion = 2
	baseSchema    = 1

	opTimeout = 5 * time.Second
)

// language=SQL
const upsertKVSQL = `INSERT INTO kv(key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`

// language=SQL
const insertRevisionSQL = `INSERT INTO snapshots(key, ts, size, value) VALUES (?, ?, ?, ?)`

// language=SQL
const listRevisionsSQL = `SELECT id, key, ts, size FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT ?`

// language=SQL
const pruneRevisionsSQL = `DELETE FROM snapshots WHERE key = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT ?
)`

// Revision is one stored snapshot in the history of a key.
type Revision struct {
	ID   int64
	Key  string
	TS   time.Time
	Size int
}

// SQLiteKV keeps the current value of every key in a kv table and each written value in a
// snapshots table, pruned to Keep revisions per key.
type SQLiteKV struct {
	db   *sql.DB
	path string
	Keep int // revisions kept per key; 0 means DefaultHistoryKeep, <0 keeps all
	log  *slog.Logger
}

// OpenSQLite opens or creates <dir>/draftbook.sqlite in WAL mode and migrates it.
func OpenSQLite(dir string, keep int) (*SQLiteKV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	path := filepath.Join(dir, DBFileName)
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	l := applog.WithComponent("storage").With(slog.String("backend", "sqlite"))
	if err := ensureKVSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("database ready", slog.String("path", path))
	return &SQLiteKV{db: db, path: path, Keep: keep, log: l}, nil
}

// openDB opens an SQLite file with WAL, a busy timeout and the meta/version tables.
func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY between our own statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (k *SQLiteKV) Path() string { return k.path }

// DB exposes the underlying handle, e.g. to share it with a PreviewCache.
func (k *SQLiteKV) DB() *sql.DB { return k.db }

// Close closes the database.
func (k *SQLiteKV) Close() error { return k.db.Close() }

func (k *SQLiteKV) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value as the current value of key and appends it to the key's history
// in one transaction.
func (k *SQLiteKV) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertKVSQL, key, value, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, insertRevisionSQL, key, now, len(value), value); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record revision of %s: %w", key, err)
	}
	if keep := k.keep(); keep > 0 {
		if _, err := tx.ExecContext(ctx, pruneRevisionsSQL, key, key, keep); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prune revisions of %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func (k *SQLiteKV) keep() int {
	if k.Keep == 0 {
		return DefaultHistoryKeep
	}
	return k.Keep
}

// History returns up to limit revisions of key, newest first.
func (k *SQLiteKV) History(ctx context.Context, key string, limit int) ([]Revision, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := k.db.QueryContext(ctx, listRevisionsSQL, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var r Revision
		var ts string
		if err := rows.Scan(&r.ID, &r.Key, &ts, &r.Size); err != nil {
			return nil, err
		}
		r.TS, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RevisionValue returns the stored value of a revision.
func (k *SQLiteKV) RevisionValue(ctx context.Context, id int64) (Revision, string, error) {
	var r Revision
	var ts, v string
	err := k.db.QueryRowContext(ctx, `SELECT id, key, ts, size, value FROM snapshots WHERE id = ?`, id).Scan(&r.ID, &r.Key, &ts, &r.Size, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, "", fmt.Errorf("revision %d not found", id)
	}
	if err != nil {
		return Revision{}, "", fmt.Errorf("read revision %d: %w", id, err)
	}
	r.TS, _ = time.Parse(time.RFC3339Nano, ts)
	return r, v, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, baseSchema, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can pick up from there
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureKVSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id    INTEGER PRIMARY KEY,
			key   TEXT    NOT NULL,
			ts    TEXT    NOT NULL,
			value TEXT    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure kv schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
// Version 2 adds the size column and the per-key history index.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// written by a newer build; never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			has, err := hasColumn(ctx, db, "snapshots", "size")
			if err != nil {
				return err
			}
			if !has {
				stmts = append(stmts, `ALTER TABLE snapshots ADD COLUMN size INTEGER NOT NULL DEFAULT 0;`)
			}
			stmts = append(stmts,
				`UPDATE snapshots SET size = length(value);`,
				`CREATE INDEX IF NOT EXISTS idx_snapshots_key_id ON snapshots(key, id);`,
			)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
