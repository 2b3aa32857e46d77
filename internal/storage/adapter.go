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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"draftbook/internal/domain"
	"draftbook/internal/library"
	applog "draftbook/internal/log"
)

//go:embed library.schema.json
var librarySchemaJSON []byte

// LibrarySchema returns the JSON schema every persisted snapshot must satisfy.
func LibrarySchema() []byte { return librarySchemaJSON }

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(librarySchemaJSON))
	})
	return schema, schemaErr
}

// ErrInvalidSnapshot wraps schema violations found in a persisted snapshot.
var ErrInvalidSnapshot = errors.New("invalid library snapshot")

// Validate checks data against the library schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
	}
	return nil
}

// Encode serializes a library snapshot. A nil library or item list is written as [], so
// Decode always returns non-nil item lists. Strings must be valid UTF-8; the library store
// guarantees that for everything it holds.
func Encode(lib domain.Library) ([]byte, error) {
	out := make(domain.Library, len(lib))
	for i, w := range lib {
		if w.Items == nil {
			w.Items = []domain.Item{}
		}
		out[i] = w
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal library: %w", err)
	}
	return b, nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (domain.Library, error) {
	var lib domain.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("unmarshal library: %w", err)
	}
	if lib == nil {
		lib = domain.Library{}
	}
	for i := range lib {
		if lib[i].Items == nil {
			lib[i].Items = []domain.Item{}
		}
	}
	return lib, nil
}

// Adapter reads and writes one library snapshot under Key.
type Adapter struct {
	KV  KVStore
	Key string
	log *slog.Logger
}

// NewAdapter binds kv to key.
func NewAdapter(kv KVStore, key string) *Adapter {
	return &Adapter{KV: kv, Key: key, log: applog.WithComponent("storage").With(slog.String("key", key))}
}

// Load returns the persisted library. A missing key yields seed with a nil error.
// A value that cannot be read, decoded or validated also yields seed, together with the
// error, so the caller can start from a usable library and still report the problem.
func (a *Adapter) Load(seed domain.Library) (domain.Library, error) {
	v, ok, err := a.KV.Get(a.Key)
	if err != nil {
		a.log.Warn("snapshot unreadable, starting from seed", slog.Any("err", err))
		return seed, err
	}
	if !ok {
		a.log.Info("no snapshot yet, starting from seed")
		return seed, nil
	}
	if err := Validate([]byte(v)); err != nil {
		a.log.Warn("snapshot failed validation, starting from seed", slog.Any("err", err))
		return seed, err
	}
	lib, err := Decode([]byte(v))
	if err != nil {
		a.log.Warn("snapshot undecodable, starting from seed", slog.Any("err", err))
		return seed, err
	}
	a.log.Debug("snapshot loaded", slog.Int("works", len(lib)), slog.Int("items", lib.ItemCount()))
	return lib, nil
}

// Save encodes lib and writes it under Key.
func (a *Adapter) Save(lib domain.Library) error {
	b, err := Encode(lib)
	if err != nil {
		return err
	}
	return a.KV.Set(a.Key, string(b))
}

// Attach writes every change published by s through a, synchronously and in order.
// Write failures are logged and otherwise ignored. The returned function detaches.
func Attach(s *library.Store, a *Adapter) (detach func()) {
	return s.OnChange(func(c library.Change) {
		if err := a.Save(c.Library); err != nil {
			a.log.Error("persist snapshot failed", slog.String("op", string(c.Op)), slog.Any("err", err))
		}
	})
}
