/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package nav

import (
	"testing"

	"draftbook/internal/domain"
	"draftbook/internal/order"
)

func book(id string, items ...string) domain.Work {
	w := domain.Work{ID: id, Title: id, Items: []domain.Item{}}
	for _, it := range items {
		w.Items = append(w.Items, domain.Item{ID: it, Title: it})
	}
	return w
}

func TestStartsOnShelf(t *testing.T) {
	n := New()
	a := n.Resolve(nil)
	if a.View != domain.ViewShelf || a.Domain != domain.Novels || a.Work != nil || a.ItemIndex != -1 {
		t.Fatalf("unexpected start state: %+v", a)
	}
}

func TestSelectWorkAndItemAndBack(t *testing.T) {
	lib := domain.Library{book("b1", "c1", "c2")}
	n := New()
	n.SelectWork(domain.Novels, "b1")
	if a := n.Resolve(lib); a.View != domain.ViewWorkDetails || a.Work == nil || a.Work.ID != "b1" {
		t.Fatalf("after select work: %+v", a)
	}
	n.SelectItem("c2")
	a := n.Resolve(lib)
	if a.View != domain.ViewEditor || a.Item == nil || a.Item.ID != "c2" || a.ItemIndex != 1 {
		t.Fatalf("after select item: %+v", a)
	}
	n.Back()
	if st := n.State(); st.View != domain.ViewWorkDetails || st.Novels.ItemID != "" || st.Novels.WorkID != "b1" {
		t.Fatalf("back from editor: %+v", st)
	}
	n.Back()
	if st := n.State(); st.View != domain.ViewShelf || st.Novels.WorkID != "" {
		t.Fatalf("back from details: %+v", st)
	}
	n.Back()
	if st := n.State(); st.View != domain.ViewShelf {
		t.Fatalf("back on root moved: %+v", st)
	}
}

func TestDeleteActiveWorkHealsInOneStep(t *testing.T) {
	n := New()
	n.SelectWork(domain.Novels, "b1")
	n.SelectItem("c1")
	n.AfterWorkDeleted(domain.Novels, "b1")
	st := n.State()
	if st.View != domain.ViewShelf || st.Novels.WorkID != "" || st.Novels.ItemID != "" {
		t.Fatalf("state after delete: %+v", st)
	}
}

func TestDeleteOtherWorkKeepsSelection(t *testing.T) {
	n := New()
	n.SelectWork(domain.Novels, "b1")
	n.AfterWorkDeleted(domain.Novels, "b2")
	if st := n.State(); st.View != domain.ViewWorkDetails || st.Novels.WorkID != "b1" {
		t.Fatalf("unrelated delete changed state: %+v", st)
	}
}

func TestDeleteActiveComicReturnsToGallery(t *testing.T) {
	n := New()
	n.OpenReader("k1")
	n.AfterWorkDeleted(domain.Comics, "k1")
	if st := n.State(); st.View != domain.ViewGallery || st.Comics.WorkID != "" {
		t.Fatalf("state after comic delete: %+v", st)
	}
}

func TestDeleteOpenChapterFromEditor(t *testing.T) {
	n := New()
	n.SelectWork(domain.Novels, "b1")
	n.SelectItem("c2")
	n.AfterItemDeleted(domain.Novels, "c2")
	a := n.Resolve(domain.Library{book("b1", "c1")})
	if a.View != domain.ViewWorkDetails || a.Novels.ItemID != "" || a.Item != nil {
		t.Fatalf("state after chapter delete: %+v", a)
	}
}

func TestResolveHealsVanishedItem(t *testing.T) {
	n := New()
	n.EnterEditor(domain.Novels, "b1", "gone")
	a := n.Resolve(domain.Library{book("b1", "c1")})
	if a.View != domain.ViewWorkDetails || a.Novels.ItemID != "" || a.Work == nil {
		t.Fatalf("editor with missing item: %+v", a)
	}
}

func TestResolveHealsVanishedWork(t *testing.T) {
	n := New()
	n.OpenReader("k1")
	n.SetPage(3)
	a := n.Resolve(domain.Library{})
	if a.View != domain.ViewGallery || a.Comics.WorkID != "" || a.Comics.Page != 0 || a.Work != nil {
		t.Fatalf("reader with missing comic: %+v", a)
	}
}

func TestReaderAlwaysStartsAtFirstPage(t *testing.T) {
	lib := domain.Library{book("k1", "p1", "p2", "p3")}
	n := New()
	n.OpenReader("k1")
	n.JumpToPage(2, 3)
	n.Back()
	n.OpenReader("k1")
	a := n.Resolve(lib)
	if a.View != domain.ViewReader || a.Comics.Page != 0 || a.Item == nil || a.Item.ID != "p1" {
		t.Fatalf("reader did not reset: %+v", a)
	}
}

func TestPageDeletionDecrementsOnlyAboveZero(t *testing.T) {
	n := New()
	n.OpenReader("k1")
	n.SetPage(1)
	n.AfterPageDeleted()
	if p := n.State().Comics.Page; p != 0 {
		t.Fatalf("page = %d, want 0", p)
	}
	n.AfterPageDeleted()
	if p := n.State().Comics.Page; p != 0 {
		t.Fatalf("page = %d, want 0 (no negative index)", p)
	}
}

func TestJumpToAppendedPage(t *testing.T) {
	lib := domain.Library{book("k1", "p1", "p2", "p3", "p4")}
	n := New()
	n.OpenReader("k1")
	n.SetPage(3)
	a := n.Resolve(lib)
	if a.ItemIndex != 3 || a.Item.ID != "p4" {
		t.Fatalf("active page = %+v", a)
	}
}

func TestStepPageBounds(t *testing.T) {
	n := New()
	n.OpenReader("k1")
	if n.StepPage(order.Prev, 2) {
		t.Fatalf("step before first page")
	}
	if !n.StepPage(order.Next, 2) || n.StepPage(order.Next, 2) {
		t.Fatalf("step next bounds wrong")
	}
	if n.JumpToPage(5, 2) || n.State().Comics.Page != 1 {
		t.Fatalf("out-of-range jump changed page")
	}
}

func TestFollowMovedPage(t *testing.T) {
	n := New()
	n.OpenReader("k1")
	n.SetPage(1)
	n.FollowMovedPage(1, order.Next, 3)
	if p := n.State().Comics.Page; p != 2 {
		t.Fatalf("page = %d, want 2", p)
	}
	n.FollowMovedPage(2, order.Next, 3)
	if p := n.State().Comics.Page; p != 2 {
		t.Fatalf("page moved past end: %d", p)
	}
}

func TestStepItem(t *testing.T) {
	w := book("b1", "c1", "c2", "c3")
	n := New()
	n.EnterEditor(domain.Novels, "b1", "c2")
	if !n.StepItem(w, order.Next) || n.State().Novels.ItemID != "c3" {
		t.Fatalf("next chapter: %+v", n.State())
	}
	if n.StepItem(w, order.Next) {
		t.Fatalf("stepped past last chapter")
	}
	n.StepItem(w, order.Prev)
	n.StepItem(w, order.Prev)
	if n.StepItem(w, order.Prev) || n.State().Novels.ItemID != "c1" {
		t.Fatalf("prev chapter: %+v", n.State())
	}
}

func TestSwitchDomain(t *testing.T) {
	n := New()
	n.SelectWork(domain.Novels, "b1")
	n.SwitchDomain(domain.Comics)
	st := n.State()
	if st.View != domain.ViewGallery || st.Domain != domain.Comics {
		t.Fatalf("switch to comics: %+v", st)
	}
	if st.Novels.WorkID != "b1" {
		t.Fatalf("novel selection should be untouched: %+v", st)
	}
	n.SwitchDomain(domain.Novels)
	if st := n.State(); st.View != domain.ViewShelf || st.Novels.WorkID != "" {
		t.Fatalf("switch back to novels: %+v", st)
	}
}

func TestSelectItemIgnoredOutsideNovelViews(t *testing.T) {
	n := New()
	n.SelectItem("c1")
	if st := n.State(); st.View != domain.ViewShelf || st.Novels.ItemID != "" {
		t.Fatalf("select item on shelf: %+v", st)
	}
}

func TestEpochChangesWhenReaderIsLeft(t *testing.T) {
	n := New()
	n.SelectWork(domain.Comics, "c1")
	start := n.Epoch()

	n.StepPage(order.Next, 3)
	n.JumpToPage(2, 3)
	n.SetPage(1)
	n.AfterPageDeleted()
	if n.Epoch() != start {
		t.Fatalf("paging changed the epoch")
	}

	n.Back()
	n.SelectWork(domain.Comics, "c1")
	if n.Epoch() == start {
		t.Fatalf("reopening the same comic kept epoch %d", start)
	}

	prev := n.Epoch()
	n.AfterWorkDeleted(domain.Comics, "c1")
	if n.Epoch() == prev {
		t.Fatalf("deleting the open comic kept the epoch")
	}
}
