/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes works to distributable files: novels as PDF or EPUB, comics as CBZ.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
)

// PDFOptions controls novel PDF export. Units are millimetres.
//
// The core Helvetica font only covers cp1252; text outside it prints as '?'.
// Set FontPath to a UTF-8 TrueType font (e.g. a CJK font) to embed it instead.
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	FontPath string
	FontSize float64 // body size in pt, default 11
	PageSize string  // gofpdf size name, default "A5"
	Author   string
	Chapters []int // if empty, export all chapters
	// NoCover skips the title page.
	NoCover bool
}

const (
	bodyFamily   = "body"
	coverImgName = "cover"
)

// ExportNovelPDF writes one book to a single PDF at outPath: a title page with the cover
// (data URI covers only) and description, then one section per chapter with an outline entry.
func ExportNovelPDF(w domain.Work, outPath string, opt PDFOptions) error {
	if len(w.Items) == 0 {
		return errors.New("book has no chapters")
	}
	if opt.FontSize <= 0 {
		opt.FontSize = 11
	}
	if opt.PageSize == "" {
		opt.PageSize = "A5"
	}
	outPath = withExt(outPath, ".pdf")

	pdf := gofpdf.New("P", "mm", opt.PageSize, "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 18)

	family, style := "Helvetica", ""
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opt.FontPath != "" || tr == nil {
		tr = func(s string) string { return s }
	}
	if opt.FontPath != "" {
		pdf.AddUTF8Font(bodyFamily, "", opt.FontPath)
		family = bodyFamily
	}
	pdf.SetTitle(w.Title, true)
	pdf.SetCreator("draftbook", false)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 && !opt.NoCover {
			return
		}
		pdf.SetY(-12)
		pdf.SetFont(family, style, 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	if !opt.NoCover {
		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()
		left, top, right, _ := pdf.GetMargins()
		contentW := pageW - left - right
		y := top
		if png := coverPNG(w.CoverImage); png != nil {
			info := pdf.RegisterImageOptionsReader(coverImgName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
			if info != nil && !pdf.Err() {
				iw, ih := info.Extent()
				h := pageH * 0.5
				wd := iw * h / ih
				if wd > contentW {
					wd, h = contentW, ih*contentW/iw
				}
				pdf.ImageOptions(coverImgName, left+(contentW-wd)/2, y, wd, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
				y += h + 8
			}
		}
		pdf.SetY(y)
		pdf.SetFont(family, style, opt.FontSize*2)
		pdf.MultiCell(0, opt.FontSize, tr(w.Title), "", "C", false)
		if opt.Author != "" {
			pdf.Ln(2)
			pdf.SetFont(family, style, opt.FontSize*1.2)
			pdf.MultiCell(0, opt.FontSize*0.7, tr(opt.Author), "", "C", false)
		}
		if strings.TrimSpace(w.Description) != "" {
			pdf.Ln(6)
			pdf.SetFont(family, style, opt.FontSize)
			pdf.MultiCell(0, opt.FontSize*0.55, tr(w.Description), "", "C", false)
		}
	}

	for _, idx := range selectIndexes(len(w.Items), opt.Chapters) {
		if idx < 0 || idx >= len(w.Items) {
			continue
		}
		ch := w.Items[idx]
		pdf.AddPage()
		pdf.Bookmark(ch.Title, 0, -1)
		pdf.SetFont(family, style, opt.FontSize*1.5)
		pdf.MultiCell(0, opt.FontSize*0.8, tr(ch.Title), "", "L", false)
		pdf.Ln(4)
		pdf.SetFont(family, style, opt.FontSize)
		for _, para := range paragraphs(ch.Payload) {
			pdf.MultiCell(0, opt.FontSize*0.5, tr(para), "", "J", false)
			pdf.Ln(opt.FontSize * 0.25)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// coverPNG normalizes a data URI cover to PNG. Remote covers yield nil.
func coverPNG(cover string) []byte {
	if !imaging.IsDataURI(cover) {
		return nil
	}
	_, data, err := imaging.DecodeDataURI(cover)
	if err != nil {
		return nil
	}
	png, err := imaging.Thumbnail(data, 1200, 1800)
	if err != nil {
		return nil
	}
	return png
}

// paragraphs splits chapter text on line breaks and drops blank lines.
func paragraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func selectIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return specific
}

func withExt(path, ext string) string {
	if !strings.HasSuffix(strings.ToLower(path), ext) {
		return path + ext
	}
	return path
}
