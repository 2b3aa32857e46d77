/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package library implements the library store: the single owner of one domain's
// ordered collection of works and their ordered items.
//
// Every operation produces a new Library value (copy-on-write) and publishes it to the
// registered change handlers, in mutation order. Operations that reference an unknown
// work or item are silent no-ops: nothing changes and nothing is published. Ids handed
// to the store always come from a live snapshot, so a miss can only mean a stale reference.
package library

import (
	"log/slog"
	"strings"
	"sync"

	"draftbook/internal/domain"
	"draftbook/internal/ident"
	applog "draftbook/internal/log"
	"draftbook/internal/order"
)

// Op names a store mutation; it is carried on every Change.
type Op string

const (
	OpCreateWork     Op = "create_work"
	OpUpdateWorkInfo Op = "update_work_info"
	OpDeleteWork     Op = "delete_work"
	OpReorderWork    Op = "reorder_work"
	OpAddItem        Op = "add_item"
	OpAppendItem     Op = "append_generated_item"
	OpDeleteItem     Op = "delete_item"
	OpReorderItem    Op = "reorder_item"
	OpUpdateItem     Op = "update_item_field"
)

// Change is published after every successful mutation.
// Library is a private copy of the post-mutation snapshot.
type Change struct {
	Kind    domain.Kind
	Op      Op
	WorkID  string
	ItemID  string
	Library domain.Library
}

// Handler receives changes synchronously, in mutation order.
// A handler may read the store but must not mutate it.
type Handler func(Change)

// Store owns one domain library. It is safe for concurrent use.
type Store struct {
	desc domain.Descriptor
	src  ident.Source
	log  *slog.Logger

	mu       sync.Mutex
	lib      domain.Library
	handlers map[int]Handler
	nextID   int

	// emitMu is taken before mu is released so handlers observe changes in order.
	emitMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithSource overrides the id/time source (deterministic sources in tests).
func WithSource(src ident.Source) Option { return func(s *Store) { s.src = src } }

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// New creates a store for the domain described by desc, starting from initial.
func New(desc domain.Descriptor, initial domain.Library, opts ...Option) *Store {
	s := &Store{
		desc:     desc,
		src:      ident.System{},
		lib:      initial.Clone(),
		handlers: make(map[int]Handler),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = applog.WithComponent("library").With(slog.String("domain", string(desc.Kind)))
	}
	if s.lib == nil {
		s.lib = domain.Library{}
	}
	for i := range s.lib {
		if s.lib[i].Items == nil {
			s.lib[i].Items = []domain.Item{}
		}
	}
	return s
}

// text replaces invalid UTF-8 so that stored strings survive a JSON snapshot unchanged.
func text(v string) string { return strings.ToValidUTF8(v, "\uFFFD") }

// Descriptor returns the domain descriptor the store was created with.
func (s *Store) Descriptor() domain.Descriptor { return s.desc }

// OnChange registers h and returns a function that unregisters it.
func (s *Store) OnChange(h Handler) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a deep copy of the current library.
func (s *Store) Snapshot() domain.Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.Clone()
}

// Len returns the number of works.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lib)
}

// Work returns a copy of the work with id.
func (s *Store) Work(id string) (domain.Work, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, w := s.lib.Find(id)
	if w == nil {
		return domain.Work{}, false
	}
	return *w, true
}

// Item returns a copy of the item and its position inside the work.
func (s *Store) Item(workID, itemID string) (domain.Item, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, w := s.lib.Find(workID)
	if w == nil {
		return domain.Item{}, -1, false
	}
	idx, it := w.FindItem(itemID)
	if it == nil {
		return domain.Item{}, -1, false
	}
	return *it, idx, true
}

// CreateWork appends a new work and returns its id. An empty cover falls back to the
// domain placeholder. Title validation is the caller's job. Invalid UTF-8 in any text
// field is replaced with U+FFFD, here and in every other mutation.
func (s *Store) CreateWork(title, description, cover string) string {
	if cover == "" {
		cover = s.desc.PlaceholderCover
	}
	id := s.src.NewID(s.desc.WorkIDPrefix)
	w := domain.Work{
		ID:          id,
		Title:       text(title),
		Description: text(description),
		CoverImage:  text(cover),
		Items:       []domain.Item{},
		CreatedAt:   s.src.Now(),
	}
	s.apply(Change{Op: OpCreateWork, WorkID: id}, func(lib domain.Library) (domain.Library, bool) {
		return order.Append(lib, w), true
	})
	return id
}

// UpdateWorkInfo replaces title and description. An empty newCover keeps the current cover.
func (s *Store) UpdateWorkInfo(workID, title, description, newCover string) bool {
	return s.apply(Change{Op: OpUpdateWorkInfo, WorkID: workID}, func(lib domain.Library) (domain.Library, bool) {
		return replaceWork(lib, workID, func(w domain.Work) domain.Work {
			w.Title = text(title)
			w.Description = text(description)
			if newCover != "" {
				w.CoverImage = text(newCover)
			}
			return w
		})
	})
}

// DeleteWork removes the work together with all its items in one transition.
func (s *Store) DeleteWork(workID string) bool {
	return s.apply(Change{Op: OpDeleteWork, WorkID: workID}, func(lib domain.Library) (domain.Library, bool) {
		next, n := order.Remove(lib, func(w domain.Work) bool { return w.ID == workID })
		return next, n > 0
	})
}

// ReorderWork moves the work at index one step in dir. Moves past either end are no-ops.
func (s *Store) ReorderWork(index int, dir order.Direction) bool {
	return s.apply(Change{Op: OpReorderWork}, func(lib domain.Library) (domain.Library, bool) {
		if !movable(len(lib), index, dir) {
			return lib, false
		}
		return order.MoveAdjacent(lib, index, dir), true
	})
}

// AddItem appends an empty item with a positional placeholder title and returns its id.
func (s *Store) AddItem(workID string) (string, bool) {
	id := s.src.NewID(s.desc.ItemIDPrefix)
	now := s.src.Now()
	ok := s.apply(Change{Op: OpAddItem, WorkID: workID, ItemID: id}, func(lib domain.Library) (domain.Library, bool) {
		return replaceWork(lib, workID, func(w domain.Work) domain.Work {
			w.Items = order.Append(w.Items, domain.Item{
				ID:        id,
				Title:     s.desc.DefaultItemTitle(len(w.Items) + 1),
				CreatedAt: now,
			})
			return w
		})
	})
	if !ok {
		return "", false
	}
	return id, true
}

// AppendGeneratedItem appends an item whose payload is an encoded resource (a page image).
// index is the position of the new item in the post-append sequence (len-1).
func (s *Store) AppendGeneratedItem(workID, payload string) (id string, index int, ok bool) {
	id = s.src.NewID(s.desc.ItemIDPrefix)
	now := s.src.Now()
	index = -1
	ok = s.apply(Change{Op: OpAppendItem, WorkID: workID, ItemID: id}, func(lib domain.Library) (domain.Library, bool) {
		return replaceWork(lib, workID, func(w domain.Work) domain.Work {
			w.Items = order.Append(w.Items, domain.Item{
				ID:        id,
				Title:     s.desc.DefaultItemTitle(len(w.Items) + 1),
				Payload:   text(payload),
				CreatedAt: now,
			})
			index = len(w.Items) - 1
			return w
		})
	})
	if !ok {
		return "", -1, false
	}
	return id, index, true
}

// DeleteItem removes the item from the work's sequence.
func (s *Store) DeleteItem(workID, itemID string) bool {
	return s.apply(Change{Op: OpDeleteItem, WorkID: workID, ItemID: itemID}, func(lib domain.Library) (domain.Library, bool) {
		removed := 0
		next, found := replaceWork(lib, workID, func(w domain.Work) domain.Work {
			w.Items, removed = order.Remove(w.Items, func(it domain.Item) bool { return it.ID == itemID })
			return w
		})
		return next, found && removed > 0
	})
}

// ReorderItem moves the item at index inside the work one step in dir.
func (s *Store) ReorderItem(workID string, index int, dir order.Direction) bool {
	return s.apply(Change{Op: OpReorderItem, WorkID: workID}, func(lib domain.Library) (domain.Library, bool) {
		moved := false
		next, found := replaceWork(lib, workID, func(w domain.Work) domain.Work {
			if movable(len(w.Items), index, dir) {
				w.Items = order.MoveAdjacent(w.Items, index, dir)
				moved = true
			}
			return w
		})
		return next, found && moved
	})
}

// UpdateItemField replaces one field of an item with value.
func (s *Store) UpdateItemField(workID, itemID string, field domain.Field, value string) bool {
	return s.apply(Change{Op: OpUpdateItem, WorkID: workID, ItemID: itemID}, func(lib domain.Library) (domain.Library, bool) {
		hit := false
		next, found := replaceWork(lib, workID, func(w domain.Work) domain.Work {
			w.Items, hit = order.Replace(w.Items, func(it domain.Item) bool { return it.ID == itemID }, func(it domain.Item) domain.Item {
				switch field {
				case domain.FieldTitle:
					it.Title = text(value)
				case domain.FieldPayload:
					it.Payload = text(value)
				}
				return it
			})
			return w
		})
		return next, found && hit
	})
}

// apply runs fn against the current library. When fn reports a change, the result
// becomes the new library and c is published to all handlers before apply returns.
func (s *Store) apply(c Change, fn func(domain.Library) (domain.Library, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.lib)
	if !changed {
		s.mu.Unlock()
		s.log.Debug("no-op", slog.String("op", string(c.Op)), slog.String("work", c.WorkID), slog.String("item", c.ItemID))
		return false
	}
	s.lib = next
	c.Kind = s.desc.Kind
	c.Library = next.Clone()
	handlers := make([]Handler, 0, len(s.handlers))
	for id := 0; id < s.nextID; id++ {
		if h, ok := s.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	s.log.Debug("mutation", slog.String("op", string(c.Op)), slog.String("work", c.WorkID), slog.String("item", c.ItemID), slog.Int("works", len(next)))
	for _, h := range handlers {
		h(c)
	}
	return true
}

// replaceWork copies lib with the work matching id replaced by fn(work).
// The work's items slice is cloned before fn sees it.
func replaceWork(lib domain.Library, id string, fn func(domain.Work) domain.Work) (domain.Library, bool) {
	return order.Replace(lib, func(w domain.Work) bool { return w.ID == id }, func(w domain.Work) domain.Work {
		return fn(w.Clone())
	})
}

func movable(n, index int, dir order.Direction) bool {
	target := index + dir.Offset()
	return index >= 0 && index < n && target >= 0 && target < n
}
