/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 90, A: 255})
		}
	}
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

func sampleNovel(cover string) domain.Work {
	return domain.Work{
		ID:          "0190f000-aaaa-7bbb-8ccc-000000000001",
		Title:       "The Quiet Shore",
		Description: "A short draft & notes.",
		CoverImage:  cover,
		CreatedAt:   1,
		Items: []domain.Item{
			{ID: "c1", Title: "Prologue", Payload: "First line.\n\nSecond <paragraph>.", CreatedAt: 1},
			{ID: "c2", Title: "Chapter One", Payload: "Waves.\r\nMore waves.", CreatedAt: 2},
		},
	}
}

func TestExportNovelPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "books", "quiet")
	if err := ExportNovelPDF(sampleNovel(pngDataURI(t, 6, 9)), out, PDFOptions{Author: "A. Writer"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out + ".pdf")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}

func TestExportNovelPDF_RemoteCoverAndSelection(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quiet.pdf")
	opt := PDFOptions{Chapters: []int{1, 7}, NoCover: true, PageSize: "A4"}
	if err := ExportNovelPDF(sampleNovel(domain.PlaceholderCover), out, opt); err != nil {
		t.Fatalf("export: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("pdf missing or empty: %v", err)
	}
}

func TestExportNovelPDF_RejectsEmptyBook(t *testing.T) {
	w := sampleNovel("")
	w.Items = nil
	if err := ExportNovelPDF(w, filepath.Join(t.TempDir(), "x.pdf"), PDFOptions{}); err == nil {
		t.Fatalf("expected error for a book without chapters")
	}
}

func TestParagraphs(t *testing.T) {
	got := paragraphs("  a \r\n\r\n b\n\n\nc  ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("paragraphs = %q", got)
	}
}
