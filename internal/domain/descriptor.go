/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// Kind identifies one of the two parallel libraries.
type Kind string

const (
	Novels Kind = "novels"
	Comics Kind = "comics"
)

// ParseKind accepts the canonical names plus a few aliases used on the command line.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "novels", "novel", "books", "book":
		return Novels, nil
	case "comics", "comic", "manga", "gallery":
		return Comics, nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// View is the current screen of the navigation state machine.
type View string

const (
	ViewShelf       View = "shelf"
	ViewGallery     View = "gallery"
	ViewWorkDetails View = "work-details"
	ViewEditor      View = "editor"
	ViewReader      View = "reader"
)

// PlaceholderCover is used when a work is created without a cover image.
const PlaceholderCover = "https://picsum.photos/400/600?grayscale"

// Descriptor parameterizes the generic library store and navigator for one domain.
type Descriptor struct {
	Kind       Kind
	WorkNoun   string // "book" / "comic"
	ItemNoun   string // "chapter" / "page"
	StorageKey string
	// RootView is where navigation lands when the active work disappears.
	RootView View
	// OpenView is entered when a work is selected from the root view.
	OpenView         View
	PlaceholderCover string
	WorkIDPrefix     string
	ItemIDPrefix     string
	// DefaultItemTitle returns the placeholder title for the n-th item (1-based, after append).
	DefaultItemTitle func(n int) string
	// Seed returns the library used when nothing has been persisted yet.
	Seed func(now int64) Library
}

// NovelsDescriptor describes the text library: books made of chapters.
func NovelsDescriptor() Descriptor {
	return Descriptor{
		Kind:             Novels,
		WorkNoun:         "book",
		ItemNoun:         "chapter",
		StorageKey:       "draftbook_books",
		RootView:         ViewShelf,
		OpenView:         ViewWorkDetails,
		PlaceholderCover: PlaceholderCover,
		WorkIDPrefix:     "",
		ItemIDPrefix:     "c",
		DefaultItemTitle: func(n int) string { return fmt.Sprintf("未命名段落 %d", n) },
		Seed: func(now int64) Library {
			return Library{{
				ID:          "1",
				Title:       "小說草稿",
				Description: "這是一個隨手記下的點子。",
				CoverImage:  "https://images.unsplash.com/photo-1513364235703-91f57b99173d?q=80&w=400",
				CreatedAt:   now,
				Items: []Item{
					{ID: "c1", Title: "序章：空白的世界", Payload: "什麼都沒有...", CreatedAt: now},
				},
			}}
		},
	}
}

// ComicsDescriptor describes the image library: comics made of pages.
func ComicsDescriptor() Descriptor {
	return Descriptor{
		Kind:             Comics,
		WorkNoun:         "comic",
		ItemNoun:         "page",
		StorageKey:       "draftbook_comics",
		RootView:         ViewGallery,
		OpenView:         ViewReader,
		PlaceholderCover: PlaceholderCover,
		WorkIDPrefix:     "",
		ItemIDPrefix:     "cp",
		DefaultItemTitle: func(n int) string { return fmt.Sprintf("Page %d", n) },
		Seed:             func(int64) Library { return Library{} },
	}
}

// DescriptorFor returns the descriptor for k; unknown kinds map to novels.
func DescriptorFor(k Kind) Descriptor {
	if k == Comics {
		return ComicsDescriptor()
	}
	return NovelsDescriptor()
}
