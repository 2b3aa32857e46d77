/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */
package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
	"draftbook/internal/nav"
	"draftbook/internal/pending"
	"draftbook/internal/session"
)

// Options configures Run.
type Options struct {
	Theme  string      // "system", "light" or "dark"
	Domain domain.Kind // library shown first
}

// Row is one line of a shelf, gallery or item list.
type Row struct {
	ID     string
	Label  string
	Detail string
}

// WorkRows lists the works of lib in display order.
func WorkRows(d domain.Descriptor, lib domain.Library) []Row {
	rows := make([]Row, len(lib))
	for i, w := range lib {
		rows[i] = Row{
			ID:     w.ID,
			Label:  w.Title,
			Detail: fmt.Sprintf("%s · %s", plural(len(w.Items), d.ItemNoun), excerpt(w.Description, 40)),
		}
	}
	return rows
}

// ItemRows lists the items of w. Chapters show the start of their text.
func ItemRows(d domain.Descriptor, w domain.Work) []Row {
	rows := make([]Row, len(w.Items))
	for i, it := range w.Items {
		detail := excerpt(it.Payload, 60)
		if d.Kind == domain.Comics {
			detail = fmt.Sprintf("%d / %d", i+1, len(w.Items))
		}
		rows[i] = Row{ID: it.ID, Label: it.Title, Detail: detail}
	}
	return rows
}

// Header is the breadcrumb shown above the active view.
func Header(a nav.Active) string {
	d := domain.DescriptorFor(a.Domain)
	switch a.View {
	case domain.ViewShelf:
		return "Shelf"
	case domain.ViewGallery:
		return "Gallery"
	case domain.ViewWorkDetails:
		if a.Work != nil {
			return "Shelf › " + a.Work.Title
		}
	case domain.ViewEditor:
		if a.Work != nil && a.Item != nil {
			return "Shelf › " + a.Work.Title + " › " + a.Item.Title
		}
	case domain.ViewReader:
		if a.Work != nil {
			return "Gallery › " + a.Work.Title
		}
	}
	return strings.ToUpper(d.WorkNoun[:1]) + d.WorkNoun[1:]
}

// PageLabel describes the reader cursor.
func PageLabel(a nav.Active) string {
	if a.Work == nil || len(a.Work.Items) == 0 {
		return "No pages yet"
	}
	if a.Item == nil {
		return fmt.Sprintf("– / %d", len(a.Work.Items))
	}
	return fmt.Sprintf("%d / %d", a.ItemIndex+1, len(a.Work.Items))
}

// ConfirmText returns the title and message of the delete confirmation for t.
func ConfirmText(t pending.Target, lib domain.Library) (string, string) {
	d := domain.DescriptorFor(t.Domain)
	_, w := lib.Find(t.WorkID)
	if w == nil {
		return "Delete", "This item no longer exists."
	}
	if t.Kind == pending.DeleteWork {
		return "Delete " + d.WorkNoun,
			fmt.Sprintf("Delete %q and its %s? This cannot be undone.", w.Title, plural(len(w.Items), d.ItemNoun))
	}
	_, it := w.FindItem(t.ItemID)
	if it == nil {
		return "Delete " + d.ItemNoun, "This item no longer exists."
	}
	return "Delete " + d.ItemNoun, fmt.Sprintf("Delete %q from %q? This cannot be undone.", it.Title, w.Title)
}

// FormTitle names the create or edit dialog.
func FormTitle(f pending.Form) string {
	d := domain.DescriptorFor(f.Domain)
	if f.Mode == pending.EditForm {
		return "Edit " + d.WorkNoun
	}
	return "New " + d.WorkNoun
}

// ValidateTitle is the title entry validator of the work form.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return session.ErrEmptyTitle
	}
	return nil
}

// CoverText describes the cover held by a form.
func CoverText(uri string) string {
	switch {
	case uri == "":
		return "No cover (a placeholder is used)"
	case imaging.IsDataURI(uri):
		return "Embedded image"
	}
	return uri
}

// CoverPreview renders a form cover as a PNG of at most w x h. Remote covers get a placeholder.
func CoverPreview(uri string, w, h int) ([]byte, error) {
	if !imaging.IsDataURI(uri) {
		return imaging.Placeholder("cover", w, h)
	}
	_, data, err := imaging.DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(data, w, h)
}

// ThemeVariant normalizes a configured theme name.
func ThemeVariant(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	return "system"
}

// Action is a keyboard command of the shell.
type Action int

const (
	ActNone Action = iota
	ActPrev
	ActNext
	ActBack
	ActDelete
)

// KeyAction maps a key name (as reported by the toolkit) to the command it triggers in view v.
func KeyAction(v domain.View, key string) Action {
	switch v {
	case domain.ViewReader:
		switch key {
		case "Left", "PageUp":
			return ActPrev
		case "Right", "PageDown", "Space":
			return ActNext
		case "Delete":
			return ActDelete
		}
	case domain.ViewEditor:
		switch key {
		case "PageUp":
			return ActPrev
		case "PageDown":
			return ActNext
		}
	}
	if key == "Escape" && v != domain.ViewShelf && v != domain.ViewGallery {
		return ActBack
	}
	return ActNone
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// excerpt returns the first line of s cut to at most n runes.
func excerpt(s string, n int) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
