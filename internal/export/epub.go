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
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
)

// EPUBOptions controls novel EPUB export.
//
//nolint:revive // clarity
type EPUBOptions struct {
	Author   string
	Language string // BCP 47, default "zh-TW"
	Chapters []int
	// Modified overrides the dcterms:modified stamp; zero means now.
	Modified time.Time
}

// epubNamespace derives publication ids from work ids; they are stable across exports.
var epubNamespace = uuid.MustParse("6f1c0f2e-54b5-4d0e-9a53-1f7f4c3b9e21")

// ExportNovelEPUB exports a book as a reflowable EPUB 3 package, one XHTML file per chapter.
func ExportNovelEPUB(w domain.Work, outPath string, opt EPUBOptions) error {
	chapters := selectIndexes(len(w.Items), opt.Chapters)
	if len(chapters) == 0 {
		return errors.New("book has no chapters")
	}
	if opt.Language == "" {
		opt.Language = "zh-TW"
	}
	if opt.Modified.IsZero() {
		opt.Modified = time.Now()
	}
	outPath = withExt(outPath, ".epub")

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	// mimetype must be the first entry and uncompressed
	if err := addStoredZipFile(zw, "mimetype", []byte("application/epub+zip")); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write mimetype: %w", err)
	}
	containerXML := "" +
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n" +
		"<container version=\"1.0\" xmlns=\"urn:oasis:names:tc:opendocument:xmlns:container\">\n" +
		"  <rootfiles>\n" +
		"    <rootfile full-path=\"OEBPS/content.opf\" media-type=\"application/oebps-package+xml\"/>\n" +
		"  </rootfiles>\n" +
		"</container>\n"
	if err := addZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write container.xml: %w", err)
	}
	css := "body { font-family: serif; line-height: 1.6; margin: 0 5%; }\n" +
		"h1 { font-size: 1.4em; margin: 1.5em 0 1em; }\n" +
		"p { text-indent: 2em; margin: 0 0 0.6em; }\n"
	if err := addZipFile(zw, "OEBPS/styles/book.css", []byte(css)); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write css: %w", err)
	}

	var coverHref, coverMime string
	if imaging.IsDataURI(w.CoverImage) {
		if mime, data, err := imaging.DecodeDataURI(w.CoverImage); err == nil {
			coverMime = mime
			coverHref = "images/cover" + imaging.Extension(mime)
			if err := addZipFile(zw, "OEBPS/"+coverHref, data); err != nil {
				_ = zw.Close()
				return fmt.Errorf("write cover: %w", err)
			}
		}
	}

	pad := padWidth(len(chapters))
	nav := &bytes.Buffer{}
	nav.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	fmt.Fprintf(nav, "<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:epub=\"http://www.idpf.org/2007/ops\" xml:lang=\"%s\">\n", xmlEsc(opt.Language))
	fmt.Fprintf(nav, "<head><title>%s</title></head>\n<body>\n<nav epub:type=\"toc\" id=\"toc\"><ol>\n", xmlEsc(w.Title))

	var ids []string
	for n, idx := range chapters {
		if idx < 0 || idx >= len(w.Items) {
			continue
		}
		ch := w.Items[idx]
		id := fmt.Sprintf("chapter-%0*d", pad, n+1)
		ids = append(ids, id)
		body := &bytes.Buffer{}
		body.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
		fmt.Fprintf(body, "<html xmlns=\"http://www.w3.org/1999/xhtml\" xml:lang=\"%s\">\n<head>\n<meta charset=\"utf-8\"/>\n", xmlEsc(opt.Language))
		fmt.Fprintf(body, "<title>%s</title>\n<link rel=\"stylesheet\" type=\"text/css\" href=\"styles/book.css\"/>\n</head>\n<body>\n", xmlEsc(ch.Title))
		fmt.Fprintf(body, "<h1>%s</h1>\n", xmlEsc(ch.Title))
		for _, p := range paragraphs(ch.Payload) {
			fmt.Fprintf(body, "<p>%s</p>\n", xmlEsc(p))
		}
		body.WriteString("</body>\n</html>\n")
		if err := addZipFile(zw, "OEBPS/"+id+".xhtml", body.Bytes()); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write chapter: %w", err)
		}
		fmt.Fprintf(nav, "<li><a href=\"%s.xhtml\">%s</a></li>\n", id, xmlEsc(ch.Title))
	}
	nav.WriteString("</ol></nav>\n</body>\n</html>\n")
	if err := addZipFile(zw, "OEBPS/nav.xhtml", nav.Bytes()); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write nav.xhtml: %w", err)
	}

	opf := &bytes.Buffer{}
	opf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	opf.WriteString("<package version=\"3.0\" unique-identifier=\"pub-id\" xmlns=\"http://www.idpf.org/2007/opf\">\n")
	opf.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(opf, "    <dc:identifier id=\"pub-id\">urn:uuid:%s</dc:identifier>\n", uuid.NewSHA1(epubNamespace, []byte(w.ID)))
	fmt.Fprintf(opf, "    <dc:title>%s</dc:title>\n", xmlEsc(w.Title))
	fmt.Fprintf(opf, "    <dc:language>%s</dc:language>\n", xmlEsc(opt.Language))
	if strings.TrimSpace(opt.Author) != "" {
		fmt.Fprintf(opf, "    <dc:creator>%s</dc:creator>\n", xmlEsc(opt.Author))
	}
	if strings.TrimSpace(w.Description) != "" {
		fmt.Fprintf(opf, "    <dc:description>%s</dc:description>\n", xmlEsc(w.Description))
	}
	fmt.Fprintf(opf, "    <meta property=\"dcterms:modified\">%s</meta>\n", opt.Modified.UTC().Format("2006-01-02T15:04:05Z"))
	opf.WriteString("  </metadata>\n  <manifest>\n")
	opf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	opf.WriteString("    <item id=\"css\" href=\"styles/book.css\" media-type=\"text/css\"/>\n")
	if coverHref != "" {
		fmt.Fprintf(opf, "    <item id=\"cover\" href=\"%s\" media-type=\"%s\" properties=\"cover-image\"/>\n", coverHref, coverMime)
	}
	for _, id := range ids {
		fmt.Fprintf(opf, "    <item id=\"%s\" href=\"%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", id, id)
	}
	opf.WriteString("  </manifest>\n  <spine>\n")
	for _, id := range ids {
		fmt.Fprintf(opf, "    <itemref idref=\"%s\"/>\n", id)
	}
	opf.WriteString("  </spine>\n</package>\n")
	if err := addZipFile(zw, "OEBPS/content.opf", opf.Bytes()); err != nil {
		_ = zw.Close()
		return fmt.Errorf("write content.opf: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// addStoredZipFile writes an entry with STORE method (no compression), required for EPUB mimetype.
func addStoredZipFile(zw *zip.Writer, name string, data []byte) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.Modified = time.Now()
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create archive: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// padWidth returns the zero padding needed to number n entries.
func padWidth(n int) int {
	switch {
	case n >= 1000:
		return 4
	case n >= 100:
		return 3
	case n >= 10:
		return 2
	}
	return 1
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;", "'", "&apos;")

func xmlEsc(s string) string { return xmlReplacer.Replace(s) }
