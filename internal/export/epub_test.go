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
	"archive/zip"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readZipEntry(t *testing.T, rd *zip.ReadCloser, name string) string {
	t.Helper()
	for _, f := range rd.File {
		if f.Name != name {
			continue
		}
		r, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("missing entry: %s", name)
	return ""
}

func TestExportNovelEPUB_Structure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quiet.epub")
	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := ExportNovelEPUB(sampleNovel(pngDataURI(t, 4, 4)), out, EPUBOptions{Author: "A. Writer", Language: "en", Modified: stamp}); err != nil {
		t.Fatalf("export epub: %v", err)
	}
	rd, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = rd.Close() }()

	if rd.File[0].Name != "mimetype" || rd.File[0].Method != zip.Store {
		t.Fatalf("first entry must be a stored mimetype, got %s (method %d)", rd.File[0].Name, rd.File[0].Method)
	}
	for _, name := range []string{"META-INF/container.xml", "OEBPS/nav.xhtml", "OEBPS/styles/book.css", "OEBPS/images/cover.png", "OEBPS/chapter-1.xhtml", "OEBPS/chapter-2.xhtml"} {
		readZipEntry(t, rd, name)
	}

	opf := readZipEntry(t, rd, "OEBPS/content.opf")
	for _, want := range []string{
		"<dc:title>The Quiet Shore</dc:title>",
		"<dc:creator>A. Writer</dc:creator>",
		"<dc:description>A short draft &amp; notes.</dc:description>",
		"2025-03-01T12:00:00Z",
		"properties=\"cover-image\"",
		"<itemref idref=\"chapter-2\"/>",
	} {
		if !strings.Contains(opf, want) {
			t.Fatalf("content.opf missing %q:\n%s", want, opf)
		}
	}
	ch := readZipEntry(t, rd, "OEBPS/chapter-1.xhtml")
	if !strings.Contains(ch, "<p>Second &lt;paragraph&gt;.</p>") || !strings.Contains(ch, "<h1>Prologue</h1>") {
		t.Fatalf("chapter body not escaped or split:\n%s", ch)
	}
}

func TestExportNovelEPUB_StableIdentifier(t *testing.T) {
	dir := t.TempDir()
	w := sampleNovel("")
	ids := make([]string, 2)
	for i := range ids {
		out := filepath.Join(dir, "b"+string(rune('0'+i))+".epub")
		if err := ExportNovelEPUB(w, out, EPUBOptions{}); err != nil {
			t.Fatalf("export: %v", err)
		}
		rd, err := zip.OpenReader(out)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		opf := readZipEntry(t, rd, "OEBPS/content.opf")
		_ = rd.Close()
		start := strings.Index(opf, "urn:uuid:")
		ids[i] = opf[start : start+45]
		if strings.Contains(opf, "cover-image") {
			t.Fatalf("remote cover must not be embedded")
		}
	}
	if ids[0] != ids[1] {
		t.Fatalf("identifier changed between exports: %s vs %s", ids[0], ids[1])
	}
}

// Optional: run epubcheck if EPUBCHECK_JAR is set (path to epubcheck.jar) and Java is available.
func TestExportNovelEPUB_WithEpubCheck(t *testing.T) {
	jar := os.Getenv("EPUBCHECK_JAR")
	if jar == "" {
		t.Skip("EPUBCHECK_JAR not set; skipping epubcheck integration test")
	}
	if _, err := os.Stat(jar); err != nil {
		t.Skip("epubcheck jar missing; skipping")
	}
	if _, err := exec.LookPath("java"); err != nil {
		t.Skip("java not found; skipping")
	}
	out := filepath.Join(t.TempDir(), "quiet.epub")
	if err := ExportNovelEPUB(sampleNovel(pngDataURI(t, 4, 4)), out, EPUBOptions{}); err != nil {
		t.Fatalf("export epub: %v", err)
	}
	cmd := exec.Command("java", "-jar", jar, out)
	if outb, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("epubcheck failed: %v\nOutput:\n%s", err, string(outb))
	}
}
