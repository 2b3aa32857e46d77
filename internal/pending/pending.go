/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package pending tracks actions that wait for the user: a two-phase delete and the
// create/edit form with its uncommitted cover preview.
//
// Every form open or close bumps a generation counter. Image decodes started for a form
// carry a Ticket; a decode that completes after its form was closed or replaced is dropped.
package pending

import (
	"log/slog"
	"sync"

	"draftbook/internal/domain"
	applog "draftbook/internal/log"
)

// TargetKind says what a pending delete removes.
type TargetKind int

const (
	DeleteWork TargetKind = iota + 1
	DeleteItem
)

func (k TargetKind) String() string {
	switch k {
	case DeleteWork:
		return "work"
	case DeleteItem:
		return "item"
	}
	return "none"
}

// Target is the object of a pending delete. ItemID is empty for work deletes.
type Target struct {
	Kind   TargetKind
	Domain domain.Kind
	WorkID string
	ItemID string
}

// FormMode distinguishes create from edit forms.
type FormMode int

const (
	CreateForm FormMode = iota + 1
	EditForm
)

// Form is an open create/edit form. Preview holds the cover as a data URI or URL.
type Form struct {
	Mode    FormMode
	Domain  domain.Kind
	WorkID  string // edit only
	Preview string
}

// Ticket ties an async decode to the form generation that started it.
type Ticket struct{ gen uint64 }

// Registry holds at most one pending delete and at most one open form.
type Registry struct {
	mu   sync.Mutex
	del  *Target
	form *Form
	gen  uint64
	log  *slog.Logger
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{log: applog.WithComponent("pending")}
}

// RequestDelete records t as the pending delete, replacing any earlier one.
func (r *Registry) RequestDelete(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.del != nil && *r.del != t {
		r.log.Debug("pending delete replaced", slog.String("old", r.del.Kind.String()), slog.String("new", t.Kind.String()))
	}
	r.del = &t
}

// Pending returns the pending delete target, if any.
func (r *Registry) Pending() (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.del == nil {
		return Target{}, false
	}
	return *r.del, true
}

// ConfirmDelete clears the pending target and runs apply with it.
// It returns false, without calling apply, when nothing is pending.
func (r *Registry) ConfirmDelete(apply func(Target)) bool {
	r.mu.Lock()
	t := r.del
	r.del = nil
	r.mu.Unlock()
	if t == nil {
		return false
	}
	apply(*t)
	return true
}

// CancelDelete drops the pending target without side effects.
func (r *Registry) CancelDelete() {
	r.mu.Lock()
	r.del = nil
	r.mu.Unlock()
}

// OpenCreate opens an empty create form for d. Any stale preview is dropped.
func (r *Registry) OpenCreate(d domain.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.form = &Form{Mode: CreateForm, Domain: d}
}

// OpenEdit opens an edit form for workID with the preview seeded from its current cover.
func (r *Registry) OpenEdit(d domain.Kind, workID, currentCover string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.form = &Form{Mode: EditForm, Domain: d, WorkID: workID, Preview: currentCover}
}

// Form returns the open form, if any.
func (r *Registry) Form() (Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.form == nil {
		return Form{}, false
	}
	return *r.form, true
}

// BeginDecode returns a ticket for the currently open form.
// The second result is false when no form is open.
func (r *Registry) BeginDecode() (Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Ticket{gen: r.gen}, r.form != nil
}

// Current reports whether the form that issued t is still open.
func (r *Registry) Current(t Ticket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.form != nil && t.gen == r.gen
}

// ApplyDecoded stores uri as the preview if the form that issued t is still open.
// Stale results are discarded and reported as false.
func (r *Registry) ApplyDecoded(t Ticket, uri string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.form == nil || t.gen != r.gen {
		r.log.Debug("stale decode discarded", slog.Uint64("ticket", t.gen), slog.Uint64("current", r.gen))
		return false
	}
	r.form.Preview = uri
	return true
}

// SubmitForm closes the form and returns it for the caller to commit.
func (r *Registry) SubmitForm() (Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.form == nil {
		return Form{}, false
	}
	f := *r.form
	r.form = nil
	r.gen++
	return f, true
}

// CancelForm discards the form and its preview.
func (r *Registry) CancelForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.form != nil {
		r.gen++
	}
	r.form = nil
}
