/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package pending

import (
	"testing"

	"draftbook/internal/domain"
)

func TestDeleteRequiresConfirmation(t *testing.T) {
	r := New()
	var applied []Target
	if r.ConfirmDelete(func(t Target) { applied = append(applied, t) }) {
		t.Fatalf("confirm without request should do nothing")
	}
	r.RequestDelete(Target{Kind: DeleteWork, Domain: domain.Novels, WorkID: "1"})
	r.RequestDelete(Target{Kind: DeleteItem, Domain: domain.Novels, WorkID: "1", ItemID: "c1"})
	got, ok := r.Pending()
	if !ok || got.Kind != DeleteItem || got.ItemID != "c1" {
		t.Fatalf("pending = %+v ok=%v", got, ok)
	}
	if !r.ConfirmDelete(func(t Target) { applied = append(applied, t) }) {
		t.Fatalf("confirm failed")
	}
	if len(applied) != 1 || applied[0].ItemID != "c1" {
		t.Fatalf("applied = %+v", applied)
	}
	if _, ok := r.Pending(); ok {
		t.Fatalf("pending not cleared")
	}
}

func TestCancelDelete(t *testing.T) {
	r := New()
	r.RequestDelete(Target{Kind: DeleteWork, Domain: domain.Comics, WorkID: "k"})
	r.CancelDelete()
	called := false
	if r.ConfirmDelete(func(Target) { called = true }) || called {
		t.Fatalf("cancelled delete was applied")
	}
}

func TestCreateFormClearsPreviewEditSeedsIt(t *testing.T) {
	r := New()
	r.OpenEdit(domain.Novels, "1", "https://example.test/cover.png")
	f, ok := r.Form()
	if !ok || f.Mode != EditForm || f.Preview != "https://example.test/cover.png" {
		t.Fatalf("edit form = %+v", f)
	}
	r.OpenCreate(domain.Novels)
	f, _ = r.Form()
	if f.Mode != CreateForm || f.Preview != "" || f.WorkID != "" {
		t.Fatalf("create form kept stale state: %+v", f)
	}
}

func TestDecodeAppliesToCurrentForm(t *testing.T) {
	r := New()
	r.OpenCreate(domain.Comics)
	tk, ok := r.BeginDecode()
	if !ok {
		t.Fatalf("no form open")
	}
	if !r.ApplyDecoded(tk, "data:image/png;base64,AA") {
		t.Fatalf("decode for current form rejected")
	}
	f, ok := r.SubmitForm()
	if !ok || f.Preview != "data:image/png;base64,AA" || f.Domain != domain.Comics {
		t.Fatalf("submitted form = %+v", f)
	}
	if _, ok := r.Form(); ok {
		t.Fatalf("form still open after submit")
	}
}

func TestStaleDecodeIsDiscarded(t *testing.T) {
	cases := map[string]func(r *Registry){
		"cancelled": func(r *Registry) { r.CancelForm() },
		"reopened":  func(r *Registry) { r.OpenEdit(domain.Novels, "1", "cover") },
		"submitted": func(r *Registry) { r.SubmitForm() },
	}
	for name, interrupt := range cases {
		t.Run(name, func(t *testing.T) {
			r := New()
			r.OpenCreate(domain.Novels)
			tk, _ := r.BeginDecode()
			interrupt(r)
			if r.ApplyDecoded(tk, "data:late") {
				t.Fatalf("stale decode applied")
			}
			if f, ok := r.Form(); ok && f.Preview == "data:late" {
				t.Fatalf("preview overwritten: %+v", f)
			}
		})
	}
}

func TestBeginDecodeWithoutForm(t *testing.T) {
	r := New()
	tk, ok := r.BeginDecode()
	if ok {
		t.Fatalf("expected no open form")
	}
	if r.ApplyDecoded(tk, "data:x") {
		t.Fatalf("decode applied with no form")
	}
}
