/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session is the application core: it owns both library stores, the navigator and
// the pending-action registry, keeps them persisted, and exposes one method per user event.
//
// All events are serialized by a single mutex. The only work done outside the lock is image
// encoding; its result is applied only if the form or reader that asked for it is still the
// current one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"draftbook/internal/domain"
	"draftbook/internal/ident"
	"draftbook/internal/imaging"
	"draftbook/internal/library"
	applog "draftbook/internal/log"
	"draftbook/internal/nav"
	"draftbook/internal/order"
	"draftbook/internal/pending"
	"draftbook/internal/storage"
)

// Events receives anonymous usage events. *telemetry.Client satisfies it.
type Events interface {
	Event(name string, props map[string]any)
}

type nopEvents struct{}

func (nopEvents) Event(string, map[string]any) {}

// Encoder turns an image file into a data URI.
type Encoder func(ctx context.Context, path string) (string, error)

// Options configures Open. Every field is optional.
type Options struct {
	// KV is the persistence medium; nil keeps both libraries in memory.
	KV       storage.KVStore
	Source   ident.Source
	Events   Events
	Previews *storage.PreviewCache
	Encoder  Encoder
}

// ErrEmptyTitle is returned by SubmitForm when the title is blank. The form stays open.
var ErrEmptyTitle = errors.New("title must not be empty")

// Session wires the stores, navigator, registry and persistence together.
type Session struct {
	mu sync.Mutex

	stores   map[domain.Kind]*library.Store
	adapters map[domain.Kind]*storage.Adapter
	detach   []func()

	nav      *nav.Navigator
	pend     *pending.Registry
	events   Events
	previews *storage.PreviewCache
	encode   Encoder
	log      *slog.Logger
}

// Open loads both libraries from opts.KV and attaches persistence to them.
// A library that cannot be loaded starts from its seed; the load errors are joined and
// returned alongside a usable session.
func Open(opts Options) (*Session, error) {
	if opts.KV == nil {
		opts.KV = storage.NewMemoryKV()
	}
	if opts.Source == nil {
		opts.Source = ident.System{}
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Encoder == nil {
		opts.Encoder = imaging.EncodeFile
	}
	s := &Session{
		stores:   make(map[domain.Kind]*library.Store, 2),
		adapters: make(map[domain.Kind]*storage.Adapter, 2),
		nav:      nav.New(),
		pend:     pending.New(),
		events:   opts.Events,
		previews: opts.Previews,
		encode:   opts.Encoder,
		log:      applog.WithComponent("session"),
	}
	var errs []error
	for _, d := range []domain.Descriptor{domain.NovelsDescriptor(), domain.ComicsDescriptor()} {
		a := storage.NewAdapter(opts.KV, d.StorageKey)
		lib, err := a.Load(d.Seed(opts.Source.Now()))
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", d.Kind, err))
		}
		st := library.New(d, lib, library.WithSource(opts.Source))
		s.stores[d.Kind] = st
		s.adapters[d.Kind] = a
		s.detach = append(s.detach, storage.Attach(st, a))
	}
	s.log.Info("session opened",
		slog.Int("books", s.stores[domain.Novels].Len()),
		slog.Int("comics", s.stores[domain.Comics].Len()))
	return s, errors.Join(errs...)
}

// Close detaches persistence. The stores stay readable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.detach {
		d()
	}
	s.detach = nil
}

// Store returns the store of d for read access.
func (s *Session) Store(d domain.Kind) *library.Store { return s.stores[d] }

// Library returns a snapshot of the library of d.
func (s *Session) Library(d domain.Kind) domain.Library { return s.stores[d].Snapshot() }

// CrashSnapshots encodes both libraries for a crash autosave. It takes no session lock.
func (s *Session) CrashSnapshots() map[string]string {
	out := make(map[string]string, len(s.stores))
	for _, st := range s.stores {
		b, err := storage.Encode(st.Snapshot())
		if err != nil {
			continue
		}
		out[st.Descriptor().StorageKey] = string(b)
	}
	return out
}

// View resolves the navigation state against the active library, healing dangling
// references. Call it before every render.
func (s *Session) View() nav.Active {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve()
}

func (s *Session) resolve() nav.Active {
	st := s.nav.State()
	return s.nav.Resolve(s.stores[st.Domain].Snapshot())
}

func (s *Session) emit(name string, d domain.Kind) {
	s.events.Event(name, map[string]any{"domain": string(d)})
}

// Navigation

func (s *Session) SwitchDomain(d domain.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.SwitchDomain(d)
}

// SelectWork opens a work if it exists. Comics open in the reader on the first page.
func (s *Session) SelectWork(d domain.Kind, workID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[d].Work(workID); !ok {
		return false
	}
	s.nav.SelectWork(d, workID)
	return true
}

// SelectItem opens a chapter of the active book in the editor.
func (s *Session) SelectItem(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.resolve()
	if a.Domain != domain.Novels || a.Work == nil {
		return false
	}
	if idx, _ := a.Work.FindItem(itemID); idx < 0 {
		return false
	}
	s.nav.SelectItem(itemID)
	return s.nav.State().View == domain.ViewEditor
}

func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Back()
}

// StepChapter moves the editor to the previous or next chapter.
func (s *Session) StepChapter(dir order.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.resolve()
	if a.Work == nil || a.View != domain.ViewEditor {
		return false
	}
	return s.nav.StepItem(*a.Work, dir)
}

// StepPage turns the reader one page.
func (s *Session) StepPage(dir order.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.resolve()
	if a.Work == nil || a.View != domain.ViewReader {
		return false
	}
	return s.nav.StepPage(dir, len(a.Work.Items))
}

// JumpToPage moves the reader to page i.
func (s *Session) JumpToPage(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.resolve()
	if a.Work == nil || a.View != domain.ViewReader {
		return false
	}
	return s.nav.JumpToPage(i, len(a.Work.Items))
}

// Forms

// OpenCreateForm opens an empty create form for d.
func (s *Session) OpenCreateForm(d domain.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pend.OpenCreate(d)
}

// OpenEditForm opens an edit form seeded with the work's current cover.
func (s *Session) OpenEditForm(d domain.Kind, workID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.stores[d].Work(workID)
	if !ok {
		return false
	}
	s.pend.OpenEdit(d, workID, w.CoverImage)
	return true
}

// Form returns the open form, if any.
func (s *Session) Form() (pending.Form, bool) { return s.pend.Form() }

// AttachCover encodes the image at path and shows it as the form preview.
// It reports false without error when the form was cancelled or replaced meanwhile.
// An encode error leaves the preview unchanged and is only returned while the form is still open.
func (s *Session) AttachCover(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	t, ok := s.pend.BeginDecode()
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	ctx = applog.IntoContext(ctx, slog.String("op", "attach_cover"))
	uri, err := s.encode(ctx, path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !s.pend.Current(t) {
			s.log.DebugContext(ctx, "cover encode failed for a closed form", slog.Any("error", err))
			return false, nil
		}
		return false, err
	}
	return s.pend.ApplyDecoded(t, uri), nil
}

// SubmitForm commits the open form and returns the id of the created or edited work.
// A blank title keeps the form open and returns ErrEmptyTitle.
func (s *Session) SubmitForm(title, description string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(title) == "" {
		return "", ErrEmptyTitle
	}
	f, ok := s.pend.SubmitForm()
	if !ok {
		return "", nil
	}
	st := s.stores[f.Domain]
	switch f.Mode {
	case pending.CreateForm:
		id := st.CreateWork(title, description, f.Preview)
		s.emit("work_created", f.Domain)
		return id, nil
	case pending.EditForm:
		if !st.UpdateWorkInfo(f.WorkID, title, description, f.Preview) {
			return "", nil
		}
		s.forget(f.WorkID)
		return f.WorkID, nil
	}
	return "", nil
}

func (s *Session) CancelForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pend.CancelForm()
}

// Two-phase delete

// RequestDeleteWork asks for confirmation before deleting a work.
func (s *Session) RequestDeleteWork(d domain.Kind, workID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pend.RequestDelete(pending.Target{Kind: pending.DeleteWork, Domain: d, WorkID: workID})
}

// RequestDeleteItem asks for confirmation before deleting a chapter or page.
func (s *Session) RequestDeleteItem(d domain.Kind, workID, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pend.RequestDelete(pending.Target{Kind: pending.DeleteItem, Domain: d, WorkID: workID, ItemID: itemID})
}

// PendingDelete returns the target awaiting confirmation.
func (s *Session) PendingDelete() (pending.Target, bool) { return s.pend.Pending() }

// ConfirmDelete performs the pending delete and heals navigation in the same step.
func (s *Session) ConfirmDelete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pend.ConfirmDelete(func(t pending.Target) {
		st := s.stores[t.Domain]
		switch t.Kind {
		case pending.DeleteWork:
			w, _ := st.Work(t.WorkID)
			if st.DeleteWork(t.WorkID) {
				s.nav.AfterWorkDeleted(t.Domain, t.WorkID)
				s.forget(t.WorkID)
				for _, it := range w.Items {
					s.forget(it.ID)
				}
				s.emit("work_deleted", t.Domain)
			}
		case pending.DeleteItem:
			if !st.DeleteItem(t.WorkID, t.ItemID) {
				return
			}
			s.nav.AfterItemDeleted(t.Domain, t.ItemID)
			if t.Domain == domain.Comics && s.nav.State().Comics.WorkID == t.WorkID {
				s.nav.AfterPageDeleted()
			}
			s.forget(t.ItemID)
			s.emit("item_deleted", t.Domain)
		}
	})
}

func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pend.CancelDelete()
}

// Ordering

func (s *Session) ReorderWork(d domain.Kind, index int, dir order.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[d].ReorderWork(index, dir)
}

func (s *Session) ReorderItem(d domain.Kind, workID string, index int, dir order.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[d].ReorderItem(workID, index, dir)
}

// MovePage moves the page under the reader cursor one step and keeps the cursor on it.
func (s *Session) MovePage(dir order.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.resolve()
	if a.Work == nil || a.View != domain.ViewReader || a.Item == nil {
		return false
	}
	if !s.stores[domain.Comics].ReorderItem(a.Work.ID, a.ItemIndex, dir) {
		return false
	}
	s.nav.FollowMovedPage(a.ItemIndex, dir, len(a.Work.Items))
	return true
}

// Chapters

// AddChapter appends a chapter to workID and opens it in the editor.
func (s *Session) AddChapter(workID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.stores[domain.Novels].AddItem(workID)
	if !ok {
		return "", false
	}
	s.nav.EnterEditor(domain.Novels, workID, id)
	s.emit("item_added", domain.Novels)
	return id, true
}

// UpdateChapter replaces the chapter text.
func (s *Session) UpdateChapter(workID, itemID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[domain.Novels].UpdateItemField(workID, itemID, domain.FieldPayload, text)
}

// RenameChapter replaces the chapter title.
func (s *Session) RenameChapter(workID, itemID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[domain.Novels].UpdateItemField(workID, itemID, domain.FieldTitle, title)
}

// Pages

// AddPage encodes the image at path and appends it to the comic open in the reader, then
// jumps to the new page. If the reader was left while encoding, even when the same comic was
// reopened since, the result is dropped and the returned id is empty.
func (s *Session) AddPage(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	a := s.resolve()
	epoch := s.nav.Epoch()
	s.mu.Unlock()
	if a.Domain != domain.Comics || a.View != domain.ViewReader || a.Work == nil {
		return "", nil
	}
	comicID := a.Work.ID

	ctx = applog.IntoContext(ctx, slog.String("op", "add_page"), slog.String("comic", comicID))
	uri, err := s.encode(ctx, path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nav.State()
	if s.nav.Epoch() != epoch || now.View != domain.ViewReader || now.Comics.WorkID != comicID {
		s.log.DebugContext(ctx, "page upload discarded, reader moved on")
		return "", nil
	}
	id, idx, ok := s.stores[domain.Comics].AppendGeneratedItem(comicID, uri)
	if !ok {
		return "", nil
	}
	s.nav.SetPage(idx)
	s.emit("page_uploaded", domain.Comics)
	return id, nil
}

// Thumbnails

// Thumbnail returns a PNG of at most w x h for a page (itemID set) or a work cover.
// Remote or placeholder covers are rendered as a titled placeholder.
func (s *Session) Thumbnail(ctx context.Context, d domain.Kind, workID, itemID string, w, h int) ([]byte, error) {
	work, ok := s.stores[d].Work(workID)
	if !ok {
		return nil, fmt.Errorf("no %s %q", d, workID)
	}
	key, src, title := workID, work.CoverImage, work.Title
	if itemID != "" {
		it, _, ok := s.stores[d].Item(workID, itemID)
		if !ok {
			return nil, fmt.Errorf("no item %q in %q", itemID, workID)
		}
		key, src, title = itemID, it.Payload, it.Title
	}
	gen := func(context.Context) ([]byte, error) {
		if imaging.IsDataURI(src) {
			_, data, err := imaging.DecodeDataURI(src)
			if err != nil {
				return nil, err
			}
			return imaging.Thumbnail(data, w, h)
		}
		return imaging.Placeholder(title, w, h)
	}
	if s.previews == nil {
		return gen(ctx)
	}
	return s.previews.GetOrCreate(ctx, storage.PreviewKey{ItemID: key, W: w, H: h}, gen)
}

func (s *Session) forget(id string) {
	if s.previews == nil {
		return
	}
	if err := s.previews.Forget(context.Background(), id); err != nil {
		s.log.Warn("drop cached previews failed", slog.String("id", id), slog.Any("err", err))
	}
}
