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
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"draftbook/internal/domain"
)

// Format names an output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
	FormatCBZ  Format = "cbz"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatEPUB, FormatCBZ:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want pdf, epub or cbz)", s)
}

// Supports reports whether works of kind can be written as f.
func Supports(kind domain.Kind, f Format) bool {
	if kind == domain.Comics {
		return f == FormatCBZ
	}
	return f == FormatPDF || f == FormatEPUB
}

// DefaultFormats are used by ExportLibrary when no format is given.
func DefaultFormats(kind domain.Kind) []Format {
	if kind == domain.Comics {
		return []Format{FormatCBZ}
	}
	return []Format{FormatPDF, FormatEPUB}
}

// BatchOptions controls ExportLibrary.
//
// Outputs are written to <OutDir>/<format>/<slug>-<id>.<format>, one file per work and format.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Formats []Format // empty means DefaultFormats
	WorkIDs []string // empty means every work
	OutDir  string
	PDF     PDFOptions
	EPUB    EPUBOptions
	CBZ     CBZOptions
}

// ExportLibrary exports every selected work of lib and returns the written paths.
// Works without items are skipped.
func ExportLibrary(kind domain.Kind, lib domain.Library, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = DefaultFormats(kind)
	}
	for _, f := range formats {
		if !Supports(kind, f) {
			return nil, fmt.Errorf("%s cannot be exported as %s", kind, f)
		}
	}
	want := make(map[string]bool, len(opt.WorkIDs))
	for _, id := range opt.WorkIDs {
		want[id] = true
	}

	var out []string
	for _, w := range lib {
		if len(want) > 0 && !want[w.ID] {
			continue
		}
		if len(w.Items) == 0 {
			continue
		}
		for _, f := range formats {
			path := filepath.Join(opt.OutDir, string(f), FileName(w, f))
			var err error
			switch f {
			case FormatPDF:
				err = ExportNovelPDF(w, path, opt.PDF)
			case FormatEPUB:
				err = ExportNovelEPUB(w, path, opt.EPUB)
			case FormatCBZ:
				_, err = ExportComicCBZ(w, path, opt.CBZ)
			}
			if err != nil {
				return out, fmt.Errorf("%s %s: %w", f, w.ID, err)
			}
			out = append(out, path)
		}
	}
	return out, nil
}

// FileName returns "<slug>-<id>.<format>" for w. Letters of any script are kept.
func FileName(w domain.Work, f Format) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(w.Title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "untitled"
	}
	id := w.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return fmt.Sprintf("%s-%s.%s", slug, id, f)
}
