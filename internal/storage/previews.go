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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PreviewsFileName is the cache database used when the previews are not shared with SQLiteKV.
const PreviewsFileName = "previews.sqlite"

// DefaultPreviewsMaxBytes caps the preview cache when DRAFTBOOK_PREVIEWS_MAX_BYTES is unset.
const DefaultPreviewsMaxBytes = 256 * 1024 * 1024

// PreviewKey identifies one cached rendition of an item at a given size.
type PreviewKey struct {
	ItemID string
	W, H   int
}

// PreviewCache stores scaled thumbnails of page images with least-recently-used eviction.
type PreviewCache struct {
	db       *sql.DB
	owned    bool
	MaxBytes int64
}

// OpenPreviewCache opens <dir>/previews.sqlite.
func OpenPreviewCache(dir string) (*PreviewCache, error) {
	db, err := openDB(filepath.Join(dir, PreviewsFileName))
	if err != nil {
		return nil, err
	}
	c := &PreviewCache{db: db, owned: true, MaxBytes: MaxPreviewsBytesFromEnv()}
	if err := c.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewPreviewCache uses an already open database, e.g. SQLiteKV.DB().
func NewPreviewCache(db *sql.DB) (*PreviewCache, error) {
	c := &PreviewCache{db: db, MaxBytes: MaxPreviewsBytesFromEnv()}
	if err := c.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Close closes the database if the cache opened it.
func (c *PreviewCache) Close() error {
	if c.owned {
		return c.db.Close()
	}
	return nil
}

func (c *PreviewCache) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS previews (
			id           INTEGER PRIMARY KEY,
			item_id      TEXT    NOT NULL,
			w            INTEGER NOT NULL,
			h            INTEGER NOT NULL,
			thumb_blob   BLOB    NOT NULL,
			size         INTEGER NOT NULL,
			updated_at   TEXT    NOT NULL,
			last_access  TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(item_id, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,
	}
	for _, q := range ddl {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure previews schema: %w", err)
		}
	}
	return nil
}

// accessStamp has fixed width so string order matches time order.
func accessStamp() string { return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z") }

// Get returns the cached blob for k, or nil, and marks it as recently used.
func (c *PreviewCache) Get(ctx context.Context, k PreviewKey) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT thumb_blob FROM previews WHERE item_id=? AND w=? AND h=?`, k.ItemID, k.W, k.H).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	_, _ = c.db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE item_id=? AND w=? AND h=?`, accessStamp(), k.ItemID, k.W, k.H)
	return blob, nil
}

// Put upserts a blob and evicts old entries until the cache fits MaxBytes.
func (c *PreviewCache) Put(ctx context.Context, k PreviewKey, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty preview")
	}
	now := accessStamp()
	_, err := c.db.ExecContext(ctx, `INSERT INTO previews(item_id,w,h,thumb_blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(item_id,w,h) DO UPDATE SET thumb_blob=excluded.thumb_blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		k.ItemID, k.W, k.H, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if c.MaxBytes > 0 {
		return c.EvictToFit(ctx, c.MaxBytes)
	}
	return nil
}

// GetOrCreate returns the cached blob or generates, stores and returns a new one.
func (c *PreviewCache) GetOrCreate(ctx context.Context, k PreviewKey, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := c.Get(ctx, k); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := c.Put(ctx, k, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Forget removes every rendition of an item, e.g. after the page was deleted.
func (c *PreviewCache) Forget(ctx context.Context, itemID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM previews WHERE item_id=?`, itemID); err != nil {
		return fmt.Errorf("forget preview: %w", err)
	}
	return nil
}

// EvictToFit deletes least-recently-used rows until the total size is at most capBytes.
func (c *PreviewCache) EvictToFit(ctx context.Context, capBytes int64) error {
	total, err := c.TotalBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() && cur > capBytes {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection must be released before writing
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM previews WHERE id IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := c.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalBytes returns the summed size of all cached blobs.
func (c *PreviewCache) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews size: %w", err)
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads DRAFTBOOK_PREVIEWS_MAX_BYTES, defaulting to 256MB.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv("DRAFTBOOK_PREVIEWS_MAX_BYTES")
	if v == "" {
		return DefaultPreviewsMaxBytes
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return DefaultPreviewsMaxBytes
	}
	return n
}
