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
	"fmt"
	"strings"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backend is an opened KVStore plus the resources that go with it.
type Backend struct {
	Name string
	Dir  string
	KV   KVStore
	// SQLite is set for the sqlite backend and exposes the revision history.
	SQLite *SQLiteKV
	closer func() error
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}

// OpenBackend opens the named backend in dir. keep bounds backups (file) or revisions (sqlite).
func OpenBackend(name, dir string, keep int) (*Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendFile:
		kv, err := NewFileKV(dir, keep)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: BackendFile, Dir: dir, KV: kv}, nil
	case BackendSQLite:
		kv, err := OpenSQLite(dir, keep)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: BackendSQLite, Dir: dir, KV: kv, SQLite: kv, closer: kv.Close}, nil
	case BackendMemory:
		return &Backend{Name: BackendMemory, Dir: dir, KV: NewMemoryKV()}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q (want file, sqlite or memory)", name)
}
