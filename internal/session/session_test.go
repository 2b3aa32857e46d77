/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"draftbook/internal/domain"
	"draftbook/internal/ident"
	"draftbook/internal/imaging"
	"draftbook/internal/order"
	"draftbook/internal/storage"
)

type recorder struct {
	mu    sync.Mutex
	names []string
	props []map[string]any
}

func (r *recorder) Event(name string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.props = append(r.props, props)
}

func pngURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	uri, err := imaging.Encode(&buf)
	if err != nil {
		t.Fatalf("imaging.Encode: %v", err)
	}
	return uri
}

// staticEncoder returns "data:<path>" so tests can tell pages apart.
func staticEncoder(_ context.Context, path string) (string, error) { return "data:" + path, nil }

func open(t *testing.T, kv storage.KVStore, opts ...func(*Options)) *Session {
	t.Helper()
	o := Options{KV: kv, Source: ident.NewSequence(1000), Encoder: staticEncoder}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := Open(o)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func newComic(t *testing.T, s *Session, pages int) string {
	t.Helper()
	s.OpenCreateForm(domain.Comics)
	id, err := s.SubmitForm("Comic", "")
	if err != nil || id == "" {
		t.Fatalf("create comic: %q %v", id, err)
	}
	if !s.SelectWork(domain.Comics, id) {
		t.Fatalf("select comic")
	}
	for i := 0; i < pages; i++ {
		if _, err := s.AddPage(context.Background(), "p"+string(rune('a'+i))); err != nil {
			t.Fatalf("add page: %v", err)
		}
	}
	return id
}

func TestOpenStartsFromSeed(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := open(t, kv)
	books := s.Library(domain.Novels)
	if len(books) != 1 || books[0].ID != "1" || books[0].Items[0].Title != "序章：空白的世界" {
		t.Fatalf("unexpected seed: %+v", books)
	}
	if len(s.Library(domain.Comics)) != 0 {
		t.Fatalf("comics must start empty")
	}
	if kv.Writes() != 0 {
		t.Fatalf("opening must not write, got %d writes", kv.Writes())
	}
	if v := s.View(); v.View != domain.ViewShelf || v.Domain != domain.Novels {
		t.Fatalf("unexpected initial view %+v", v.State)
	}
}

func TestAddChapterOpensEditorAndPersists(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := open(t, kv)
	s.SelectWork(domain.Novels, "1")
	id, ok := s.AddChapter("1")
	if !ok {
		t.Fatalf("AddChapter failed")
	}
	v := s.View()
	if v.View != domain.ViewEditor || v.Item == nil || v.Item.ID != id || v.ItemIndex != 1 {
		t.Fatalf("expected editor on new chapter, got %+v", v)
	}
	if v.Item.Title != "未命名段落 2" || v.Item.Payload != "" {
		t.Fatalf("unexpected new chapter %+v", *v.Item)
	}
	raw, found, err := kv.Get(domain.NovelsDescriptor().StorageKey)
	if err != nil || !found || !strings.Contains(raw, id) {
		t.Fatalf("chapter not persisted: found=%v err=%v", found, err)
	}

	if !s.UpdateChapter("1", id, "第一行") || !s.RenameChapter("1", id, "第二章") {
		t.Fatalf("chapter edits failed")
	}
	it, _, _ := s.Store(domain.Novels).Item("1", id)
	if it.Title != "第二章" || it.Payload != "第一行" {
		t.Fatalf("edits not applied: %+v", it)
	}
	if s.UpdateChapter("1", "missing", "x") {
		t.Fatalf("unknown chapter must be a no-op")
	}
}

func TestDeleteActiveWorkHealsToShelf(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	s.SelectWork(domain.Novels, "1")
	s.RequestDeleteWork(domain.Novels, "1")
	if v := s.View(); v.View != domain.ViewWorkDetails || v.Work == nil {
		t.Fatalf("request alone must not delete: %+v", v.State)
	}
	if !s.ConfirmDelete() {
		t.Fatalf("ConfirmDelete returned false")
	}
	st := s.View().State
	if st.View != domain.ViewShelf || st.Novels.WorkID != "" || st.Novels.ItemID != "" {
		t.Fatalf("expected healed shelf state, got %+v", st)
	}
	if len(s.Library(domain.Novels)) != 0 {
		t.Fatalf("work not deleted")
	}
	if s.ConfirmDelete() {
		t.Fatalf("second confirm must find nothing pending")
	}
}

func TestCancelDeleteLeavesLibrary(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := open(t, kv)
	s.RequestDeleteItem(domain.Novels, "1", "c1")
	if tgt, ok := s.PendingDelete(); !ok || tgt.ItemID != "c1" {
		t.Fatalf("pending target = %+v, %v", tgt, ok)
	}
	s.CancelDelete()
	if _, ok := s.PendingDelete(); ok {
		t.Fatalf("pending target not cleared")
	}
	if len(s.Library(domain.Novels)[0].Items) != 1 || kv.Writes() != 0 {
		t.Fatalf("cancel must not mutate")
	}
}

func TestDeleteOpenChapterReturnsToDetails(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	s.SelectWork(domain.Novels, "1")
	if !s.SelectItem("c1") {
		t.Fatalf("SelectItem failed")
	}
	s.RequestDeleteItem(domain.Novels, "1", "c1")
	s.ConfirmDelete()
	v := s.View()
	if v.View != domain.ViewWorkDetails || v.Novels.ItemID != "" || v.Work == nil {
		t.Fatalf("expected work-details with no item, got %+v", v.State)
	}
}

func TestStepChapter(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	s.SelectWork(domain.Novels, "1")
	second, _ := s.AddChapter("1")
	if !s.StepChapter(order.Prev) {
		t.Fatalf("step back failed")
	}
	if v := s.View(); v.Item.ID != "c1" {
		t.Fatalf("expected c1, got %s", v.Item.ID)
	}
	if s.StepChapter(order.Prev) {
		t.Fatalf("stepping before the first chapter must fail")
	}
	s.StepChapter(order.Next)
	if v := s.View(); v.Item.ID != second {
		t.Fatalf("expected %s, got %s", second, v.Item.ID)
	}
}

func TestCreateFormWithCover(t *testing.T) {
	rec := &recorder{}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Events = rec })
	s.OpenCreateForm(domain.Novels)
	ok, err := s.AttachCover(context.Background(), "cover.png")
	if err != nil || !ok {
		t.Fatalf("AttachCover = %v, %v", ok, err)
	}
	if f, _ := s.Form(); f.Preview != "data:cover.png" {
		t.Fatalf("preview not set: %+v", f)
	}
	if _, err := s.SubmitForm("  ", "x"); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("blank title: err = %v", err)
	}
	if _, open := s.Form(); !open {
		t.Fatalf("form must stay open after a rejected submit")
	}
	id, err := s.SubmitForm("新書", "簡介")
	if err != nil || id == "" {
		t.Fatalf("SubmitForm = %q, %v", id, err)
	}
	w, _ := s.Store(domain.Novels).Work(id)
	if w.CoverImage != "data:cover.png" || w.Title != "新書" {
		t.Fatalf("unexpected work %+v", w)
	}
	if v := s.View(); v.View != domain.ViewShelf {
		t.Fatalf("creating a work must not navigate, view=%s", v.View)
	}
	if len(rec.names) != 1 || rec.names[0] != "work_created" || rec.props[0]["domain"] != "novels" {
		t.Fatalf("unexpected events %v %v", rec.names, rec.props)
	}
	for _, p := range rec.props {
		for k := range p {
			if k != "domain" {
				t.Fatalf("event carries unexpected property %q", k)
			}
		}
	}
}

func TestEditFormKeepsCoverWithoutNewImage(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	before, _ := s.Store(domain.Novels).Work("1")
	if !s.OpenEditForm(domain.Novels, "1") {
		t.Fatalf("OpenEditForm failed")
	}
	if f, _ := s.Form(); f.Preview != before.CoverImage {
		t.Fatalf("preview not seeded from cover")
	}
	if _, err := s.SubmitForm("改名", "新描述"); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	after, _ := s.Store(domain.Novels).Work("1")
	if after.Title != "改名" || after.CoverImage != before.CoverImage || after.CreatedAt != before.CreatedAt {
		t.Fatalf("unexpected edit result %+v", after)
	}
	if s.OpenEditForm(domain.Novels, "nope") {
		t.Fatalf("edit form for unknown work must fail")
	}
}

func TestStaleCoverDecodeIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context, path string) (string, error) {
		close(started)
		<-release
		return "data:late", nil
	}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = slow })
	s.OpenCreateForm(domain.Comics)

	type res struct {
		ok  bool
		err error
	}
	done := make(chan res, 1)
	go func() {
		ok, err := s.AttachCover(context.Background(), "big.png")
		done <- res{ok, err}
	}()
	<-started
	s.CancelForm()
	s.OpenCreateForm(domain.Comics)
	close(release)
	r := <-done
	if r.err != nil || r.ok {
		t.Fatalf("stale decode applied: %+v", r)
	}
	if f, _ := s.Form(); f.Preview != "" {
		t.Fatalf("new form got the stale preview %q", f.Preview)
	}
}

func TestAttachCoverErrorKeepsPreview(t *testing.T) {
	bad := func(context.Context, string) (string, error) { return "", imaging.ErrNotDataURI }
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = bad })
	s.OpenEditForm(domain.Novels, "1")
	before, _ := s.Form()
	if ok, err := s.AttachCover(context.Background(), "corrupt.png"); ok || err == nil {
		t.Fatalf("expected encode failure, got %v %v", ok, err)
	}
	if after, _ := s.Form(); after.Preview != before.Preview {
		t.Fatalf("preview changed after failed encode")
	}
}

func TestAttachCoverErrorDroppedForClosedForm(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	bad := func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "", imaging.ErrNotDataURI
	}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = bad })
	s.OpenCreateForm(domain.Novels)

	type res struct {
		ok  bool
		err error
	}
	done := make(chan res, 1)
	go func() {
		ok, err := s.AttachCover(context.Background(), "corrupt.png")
		done <- res{ok, err}
	}()
	<-started
	s.CancelForm()
	close(release)
	if r := <-done; r.ok || r.err != nil {
		t.Fatalf("closed form reported %+v", r)
	}
}

func TestAddPageJumpsToNewPage(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	comic := newComic(t, s, 3)
	id, err := s.AddPage(context.Background(), "pd")
	if err != nil || id == "" {
		t.Fatalf("AddPage = %q, %v", id, err)
	}
	v := s.View()
	if v.Comics.Page != 3 || v.Item == nil || v.Item.ID != id || v.Item.Title != "Page 4" {
		t.Fatalf("reader not on new page: %+v", v)
	}
	w, _ := s.Store(domain.Comics).Work(comic)
	if len(w.Items) != 4 || w.Items[3].Payload != "data:pd" {
		t.Fatalf("unexpected pages %+v", w.Items)
	}
}

func TestAddPageDiscardedWhenReaderLeaves(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	enc := func(ctx context.Context, path string) (string, error) {
		started <- struct{}{}
		<-release
		return "data:" + path, nil
	}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = enc })
	s.OpenCreateForm(domain.Comics)
	comic, _ := s.SubmitForm("Comic", "")
	s.SelectWork(domain.Comics, comic)

	done := make(chan string, 1)
	go func() {
		id, _ := s.AddPage(context.Background(), "late")
		done <- id
	}()
	<-started
	s.Back()
	close(release)
	if id := <-done; id != "" {
		t.Fatalf("page appended after reader closed: %s", id)
	}
	if w, _ := s.Store(domain.Comics).Work(comic); len(w.Items) != 0 {
		t.Fatalf("comic must stay empty, has %d pages", len(w.Items))
	}
}

func TestAddPageDiscardedWhenSameComicReopened(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	enc := func(ctx context.Context, path string) (string, error) {
		started <- struct{}{}
		<-release
		return "data:" + path, nil
	}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = enc })
	s.OpenCreateForm(domain.Comics)
	comic, _ := s.SubmitForm("Comic", "")
	s.SelectWork(domain.Comics, comic)

	done := make(chan string, 1)
	go func() {
		id, _ := s.AddPage(context.Background(), "late")
		done <- id
	}()
	<-started
	s.Back()
	s.SwitchDomain(domain.Novels)
	s.SwitchDomain(domain.Comics)
	s.SelectWork(domain.Comics, comic)
	close(release)
	if id := <-done; id != "" {
		t.Fatalf("upload from the closed reader landed: %s", id)
	}
	if w, _ := s.Store(domain.Comics).Work(comic); len(w.Items) != 0 {
		t.Fatalf("comic must stay empty, has %d pages", len(w.Items))
	}
	if v := s.View(); v.Comics.Page != 0 {
		t.Fatalf("reader moved to %d", v.Comics.Page)
	}
}

func TestAddPageKeptWhilePaging(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	blocking := false
	enc := func(ctx context.Context, path string) (string, error) {
		if blocking {
			started <- struct{}{}
			<-release
		}
		return "data:" + path, nil
	}
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Encoder = enc })
	comic := newComic(t, s, 2)
	s.JumpToPage(0)
	blocking = true

	done := make(chan string, 1)
	go func() {
		id, _ := s.AddPage(context.Background(), "pc")
		done <- id
	}()
	<-started
	if !s.StepPage(order.Next) {
		t.Fatalf("step page")
	}
	close(release)
	id := <-done
	if id == "" {
		t.Fatalf("upload dropped although the reader stayed open")
	}
	if w, _ := s.Store(domain.Comics).Work(comic); len(w.Items) != 3 {
		t.Fatalf("want 3 pages, got %d", len(w.Items))
	}
	if v := s.View(); v.Comics.Page != 2 {
		t.Fatalf("reader on %d, want 2", v.Comics.Page)
	}
}

func TestDeletePageClampsReader(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	comic := newComic(t, s, 2)
	if v := s.View(); v.Comics.Page != 1 {
		t.Fatalf("expected reader on page 1, got %d", v.Comics.Page)
	}
	w, _ := s.Store(domain.Comics).Work(comic)
	s.RequestDeleteItem(domain.Comics, comic, w.Items[1].ID)
	s.ConfirmDelete()
	v := s.View()
	if v.Comics.Page != 0 || v.Item == nil || v.Item.ID != w.Items[0].ID {
		t.Fatalf("expected reader on page 0, got %+v", v)
	}

	s.RequestDeleteItem(domain.Comics, comic, w.Items[0].ID)
	s.ConfirmDelete()
	v = s.View()
	if v.Comics.Page != 0 || v.Item != nil || v.View != domain.ViewReader {
		t.Fatalf("empty comic: %+v", v)
	}
}

func TestMovePageFollowsCursor(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	comic := newComic(t, s, 3)
	s.JumpToPage(0)
	before, _ := s.Store(domain.Comics).Work(comic)
	if !s.MovePage(order.Next) {
		t.Fatalf("MovePage failed")
	}
	after, _ := s.Store(domain.Comics).Work(comic)
	if after.Items[1].ID != before.Items[0].ID || after.Items[0].ID != before.Items[1].ID {
		t.Fatalf("pages not swapped")
	}
	if v := s.View(); v.Comics.Page != 1 || v.Item.ID != before.Items[0].ID {
		t.Fatalf("cursor did not follow: %+v", v.State)
	}
	s.JumpToPage(2)
	if s.MovePage(order.Next) {
		t.Fatalf("moving the last page forward must be a no-op")
	}
	if s.JumpToPage(3) {
		t.Fatalf("jump past the end must fail")
	}
	if !s.StepPage(order.Prev) || s.View().Comics.Page != 1 {
		t.Fatalf("StepPage back failed")
	}
}

func TestReorderWorkAndReopen(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := open(t, kv)
	s.OpenCreateForm(domain.Novels)
	second, _ := s.SubmitForm("第二本", "")
	if !s.ReorderWork(domain.Novels, 1, order.Prev) {
		t.Fatalf("ReorderWork failed")
	}
	if s.ReorderWork(domain.Novels, 0, order.Prev) {
		t.Fatalf("boundary reorder must be a no-op")
	}
	s.SelectWork(domain.Novels, "1")
	s.AddChapter("1")
	if !s.ReorderItem(domain.Novels, "1", 1, order.Prev) {
		t.Fatalf("ReorderItem failed")
	}
	want := s.Library(domain.Novels)
	s.Close()

	again := open(t, kv)
	got := again.Library(domain.Novels)
	if len(got) != 2 || got[0].ID != second || got[1].Items[1].ID != "c1" {
		t.Fatalf("reopened library differs: %+v", got)
	}
	if len(got[1].Items) != len(want[1].Items) || got[1].CreatedAt != want[1].CreatedAt {
		t.Fatalf("reopened library lost data")
	}
}

func TestSwitchDomainKeepsOtherSelection(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	s.SelectWork(domain.Novels, "1")
	s.SwitchDomain(domain.Comics)
	v := s.View()
	if v.View != domain.ViewGallery || v.Novels.WorkID != "1" {
		t.Fatalf("unexpected state after switch: %+v", v.State)
	}
	s.SwitchDomain(domain.Novels)
	if v := s.View(); v.View != domain.ViewShelf || v.Novels.WorkID != "" {
		t.Fatalf("switching back lands on an empty shelf: %+v", v.State)
	}
}

func TestCrashSnapshotsDecode(t *testing.T) {
	s := open(t, storage.NewMemoryKV())
	snaps := s.CrashSnapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(snaps))
	}
	lib, err := storage.Decode([]byte(snaps[domain.NovelsDescriptor().StorageKey]))
	if err != nil || len(lib) != 1 {
		t.Fatalf("novels snapshot: %v %+v", err, lib)
	}
}

func TestThumbnailUsesCache(t *testing.T) {
	cache, err := storage.OpenPreviewCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPreviewCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	uri := pngURI(t)
	enc := func(context.Context, string) (string, error) { return uri, nil }
	s := open(t, storage.NewMemoryKV(), func(o *Options) { o.Previews = cache; o.Encoder = enc })
	comic := newComic(t, s, 1)
	w, _ := s.Store(domain.Comics).Work(comic)

	ctx := context.Background()
	thumb, err := s.Thumbnail(ctx, domain.Comics, comic, w.Items[0].ID, 4, 4)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() > 4 || b.Dy() != 4 {
		t.Fatalf("unexpected thumbnail size %v", b)
	}
	if n, _ := cache.TotalBytes(ctx); n == 0 {
		t.Fatalf("thumbnail was not cached")
	}

	cover, err := s.Thumbnail(ctx, domain.Novels, "1", "", 60, 90)
	if err != nil {
		t.Fatalf("placeholder cover: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(cover)); err != nil {
		t.Fatalf("cover is not a png: %v", err)
	}

	s.RequestDeleteItem(domain.Comics, comic, w.Items[0].ID)
	s.ConfirmDelete()
	if got, _ := cache.Get(ctx, storage.PreviewKey{ItemID: w.Items[0].ID, W: 4, H: 4}); got != nil {
		t.Fatalf("deleted page still cached")
	}
}
