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

// This file defines the core data model shared by both libraries.
// Novels and comics have the same shape: a Library is an ordered list of Works and
// every Work holds an ordered list of Items (chapters or pages). The JSON tags are the
// persisted snapshot format.

// Library is the ordered top-level collection of works for one domain (shelf order).
type Library []Work

// Work is a top-level authored unit: a novel draft or a comic book.
type Work struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverImage  string `json:"coverImage"` // data URI or remote URL
	Items       []Item `json:"items"`
	CreatedAt   int64  `json:"createdAt"` // unix millis, set once
}

// Item is a sub-unit of a Work: a chapter (Payload = text) or a page (Payload = image URI).
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Payload   string `json:"payload"`
	CreatedAt int64  `json:"createdAt"`
}

// Field names an editable Item field.
type Field int

const (
	FieldTitle Field = iota
	FieldPayload
)

func (f Field) String() string {
	if f == FieldTitle {
		return "title"
	}
	return "payload"
}

// Clone returns a deep copy of the library. Items slices are copied so that callers
// cannot reach into the store's state through a snapshot.
func (l Library) Clone() Library {
	if l == nil {
		return nil
	}
	out := make(Library, len(l))
	for i, w := range l {
		out[i] = w.Clone()
	}
	return out
}

// Clone returns a deep copy of the work.
func (w Work) Clone() Work {
	c := w
	if w.Items != nil {
		c.Items = make([]Item, len(w.Items))
		copy(c.Items, w.Items)
	}
	return c
}

// Find returns the index and a copy of the work with id, or -1.
func (l Library) Find(id string) (int, *Work) {
	for i := range l {
		if l[i].ID == id {
			w := l[i].Clone()
			return i, &w
		}
	}
	return -1, nil
}

// FindItem returns the index of the item with id inside the work, or -1.
func (w Work) FindItem(id string) (int, *Item) {
	for i := range w.Items {
		if w.Items[i].ID == id {
			it := w.Items[i]
			return i, &it
		}
	}
	return -1, nil
}

// ItemCount returns the total number of items across all works.
func (l Library) ItemCount() int {
	n := 0
	for _, w := range l {
		n += len(w.Items)
	}
	return n
}
