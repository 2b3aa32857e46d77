/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package nav holds the navigation and selection state machine shared by both libraries.
//
// The navigator never owns library data. Events move it between views; Resolve checks the
// current selection against a live library snapshot and heals dangling references before
// anything is rendered. A Navigator is not safe for concurrent use; the session serializes
// access to it.
package nav

import (
	"log/slog"

	"draftbook/internal/domain"
	applog "draftbook/internal/log"
	"draftbook/internal/order"
)

// Selection is the per-domain cursor.
// Page is the comic reader position and is unused for novels.
type Selection struct {
	WorkID string
	ItemID string
	Page   int
}

// State is the full navigation state.
type State struct {
	View   domain.View
	Domain domain.Kind
	Novels Selection
	Comics Selection
}

// Selection returns the cursor of the active domain.
func (s State) Selection() Selection {
	if s.Domain == domain.Comics {
		return s.Comics
	}
	return s.Novels
}

// Active is a resolved view of the state against a library snapshot.
// Work and Item are nil when nothing is selected; ItemIndex is -1 when Item is nil.
type Active struct {
	State
	Work      *domain.Work
	Item      *domain.Item
	ItemIndex int
}

// Navigator is the navigation state machine.
type Navigator struct {
	st    State
	epoch uint64
	log   *slog.Logger
}

// New returns a navigator on the novel shelf.
func New() *Navigator {
	return &Navigator{
		st:  State{View: domain.ViewShelf, Domain: domain.Novels},
		log: applog.WithComponent("nav"),
	}
}

// State returns a copy of the current state.
func (n *Navigator) State() State { return n.st }

// Epoch counts context changes: opening, leaving or losing a work and switching domains.
// Paging within the reader does not change it. Async work compares the epoch it started
// under with the current one before committing.
func (n *Navigator) Epoch() uint64 { return n.epoch }

func (n *Navigator) sel(d domain.Kind) *Selection {
	if d == domain.Comics {
		return &n.st.Comics
	}
	return &n.st.Novels
}

func (n *Navigator) to(v domain.View, why string) {
	if n.st.View != v {
		n.log.Debug("transition", slog.String("from", string(n.st.View)), slog.String("to", string(v)), slog.String("event", why))
	}
	n.st.View = v
}

// SwitchDomain lands on the root view of d with nothing selected in d.
// The other domain's selection is left as it was.
func (n *Navigator) SwitchDomain(d domain.Kind) {
	n.st.Domain = d
	*n.sel(d) = Selection{}
	n.epoch++
	n.to(domain.DescriptorFor(d).RootView, "switch_domain")
}

// SelectWork opens a work: novels go to work details, comics open the reader on page one.
func (n *Navigator) SelectWork(d domain.Kind, workID string) {
	n.st.Domain = d
	s := n.sel(d)
	s.WorkID = workID
	s.ItemID = ""
	s.Page = 0
	n.epoch++
	n.to(domain.DescriptorFor(d).OpenView, "select_work")
}

// OpenReader opens a comic in the reader. The page index always restarts at 0.
func (n *Navigator) OpenReader(comicID string) { n.SelectWork(domain.Comics, comicID) }

// SelectItem opens a chapter of the active book in the editor.
// It is ignored outside the novel work-details and editor views.
func (n *Navigator) SelectItem(itemID string) {
	if n.st.Domain != domain.Novels || n.st.Novels.WorkID == "" {
		return
	}
	if n.st.View != domain.ViewWorkDetails && n.st.View != domain.ViewEditor {
		return
	}
	n.st.Novels.ItemID = itemID
	n.to(domain.ViewEditor, "select_item")
}

// EnterEditor selects workID/itemID and shows the editor. Used right after an item is created.
func (n *Navigator) EnterEditor(d domain.Kind, workID, itemID string) {
	n.st.Domain = d
	s := n.sel(d)
	s.WorkID = workID
	s.ItemID = itemID
	n.epoch++
	n.to(domain.ViewEditor, "enter_editor")
}

// Back moves one level up: editor to work details, work details to shelf, reader to gallery.
// Root views stay where they are.
func (n *Navigator) Back() {
	s := n.sel(n.st.Domain)
	switch n.st.View {
	case domain.ViewEditor:
		s.ItemID = ""
		n.to(domain.ViewWorkDetails, "back")
	case domain.ViewWorkDetails:
		*s = Selection{}
		n.to(domain.ViewShelf, "back")
	case domain.ViewReader:
		*s = Selection{}
		n.to(domain.ViewGallery, "back")
	default:
		return
	}
	n.epoch++
}

// StepItem moves the editor to the neighbouring chapter of work. Returns false at either end.
func (n *Navigator) StepItem(work domain.Work, dir order.Direction) bool {
	if n.st.View != domain.ViewEditor || work.ID != n.st.Novels.WorkID {
		return false
	}
	idx, _ := work.FindItem(n.st.Novels.ItemID)
	if idx < 0 {
		return false
	}
	next := idx + dir.Offset()
	if next < 0 || next >= len(work.Items) {
		return false
	}
	n.st.Novels.ItemID = work.Items[next].ID
	return true
}

// StepPage moves the reader one page in dir within a comic of count pages.
func (n *Navigator) StepPage(dir order.Direction, count int) bool {
	next := n.st.Comics.Page + dir.Offset()
	if next < 0 || next >= count {
		return false
	}
	n.st.Comics.Page = next
	return true
}

// JumpToPage moves the reader to page i if 0 <= i < count.
func (n *Navigator) JumpToPage(i, count int) bool {
	if i < 0 || i >= count {
		return false
	}
	n.st.Comics.Page = i
	return true
}

// SetPage sets the reader position without a bounds check against the comic.
// Used to land on a page that was appended in the same step.
func (n *Navigator) SetPage(i int) {
	if i < 0 {
		i = 0
	}
	n.st.Comics.Page = i
}

// FollowMovedPage keeps the reader on a page that was just moved from index one step in dir.
// count is the number of pages in the comic.
func (n *Navigator) FollowMovedPage(index int, dir order.Direction, count int) {
	target := index + dir.Offset()
	if target >= 0 && target < count {
		n.st.Comics.Page = target
	}
}

// AfterWorkDeleted clears a selection that pointed at the deleted work and returns
// to the domain root in the same step.
func (n *Navigator) AfterWorkDeleted(d domain.Kind, workID string) {
	s := n.sel(d)
	if s.WorkID != workID {
		return
	}
	*s = Selection{}
	n.epoch++
	if n.st.Domain == d {
		n.to(domain.DescriptorFor(d).RootView, "work_deleted")
	}
}

// AfterItemDeleted clears the active item if it was deleted; the editor falls back to work details.
func (n *Navigator) AfterItemDeleted(d domain.Kind, itemID string) {
	s := n.sel(d)
	if s.ItemID == "" || s.ItemID != itemID {
		return
	}
	s.ItemID = ""
	if n.st.Domain == d && n.st.View == domain.ViewEditor {
		n.to(domain.ViewWorkDetails, "item_deleted")
	}
}

// AfterPageDeleted steps the reader back one page when it is not already on the first page.
// The rule does not look at which page was removed.
func (n *Navigator) AfterPageDeleted() {
	if n.st.Comics.Page > 0 {
		n.st.Comics.Page--
	}
}

// Resolve checks the state against lib, the current library of the active domain,
// heals dangling references in place and returns the resolved view.
func (n *Navigator) Resolve(lib domain.Library) Active {
	a := Active{ItemIndex: -1}
	d := domain.DescriptorFor(n.st.Domain)
	s := n.sel(n.st.Domain)

	switch n.st.View {
	case domain.ViewShelf, domain.ViewGallery:
		if n.st.View != d.RootView {
			n.to(d.RootView, "resolve")
		}
		a.State = n.st
		return a
	}

	_, w := lib.Find(s.WorkID)
	if w == nil {
		n.log.Debug("active work vanished", slog.String("work", s.WorkID))
		*s = Selection{}
		n.epoch++
		n.to(d.RootView, "resolve")
		a.State = n.st
		return a
	}
	a.Work = w

	switch n.st.View {
	case domain.ViewEditor:
		idx, it := w.FindItem(s.ItemID)
		if it == nil {
			n.log.Debug("active item vanished", slog.String("item", s.ItemID))
			s.ItemID = ""
			n.to(domain.ViewWorkDetails, "resolve")
			break
		}
		a.Item, a.ItemIndex = it, idx
	case domain.ViewReader:
		if s.Page >= 0 && s.Page < len(w.Items) {
			it := w.Items[s.Page]
			a.Item, a.ItemIndex = &it, s.Page
		}
	}
	a.State = n.st
	return a
}
