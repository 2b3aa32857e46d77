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
	"errors"
	"fmt"
	"strings"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
)

// CBZOptions controls comic CBZ export.
//
//nolint:revive // clarity
type CBZOptions struct {
	Pages  []int
	Writer string
	Series string
	// RightToLeft marks the comic as manga-style reading order.
	RightToLeft bool
	// NoCover leaves out the work cover as the front page.
	NoCover bool
}

// CBZReport summarizes what went into the archive.
type CBZReport struct {
	Path    string
	Pages   int
	Skipped []string // ids of pages whose image is not embedded (remote URLs, undecodable)
}

// ExportComicCBZ packages the comic's page images, in reading order, into a CBZ (ZIP)
// archive with a ComicInfo.xml manifest. Only data URI images can be embedded; other
// pages are listed in the report and left out.
func ExportComicCBZ(w domain.Work, outPath string, opt CBZOptions) (CBZReport, error) {
	rep := CBZReport{Path: withExt(outPath, ".cbz")}
	indexes := selectIndexes(len(w.Items), opt.Pages)
	if len(indexes) == 0 {
		return rep, errors.New("comic has no pages")
	}

	zw, f, err := createZip(rep.Path)
	if err != nil {
		return rep, err
	}
	defer func() { _ = f.Close() }()

	pad := padWidth(len(indexes) + 1)
	hasCover := false
	if !opt.NoCover && imaging.IsDataURI(w.CoverImage) {
		if mime, data, err := imaging.DecodeDataURI(w.CoverImage); err == nil {
			name := fmt.Sprintf("%0*d%s", pad, 0, imaging.Extension(mime))
			if err := addZipFile(zw, name, data); err != nil {
				_ = zw.Close()
				return rep, fmt.Errorf("zip add cover: %w", err)
			}
			hasCover = true
		}
	}

	for _, idx := range indexes {
		if idx < 0 || idx >= len(w.Items) {
			continue
		}
		pg := w.Items[idx]
		if !imaging.IsDataURI(pg.Payload) {
			rep.Skipped = append(rep.Skipped, pg.ID)
			continue
		}
		mime, data, err := imaging.DecodeDataURI(pg.Payload)
		if err != nil {
			rep.Skipped = append(rep.Skipped, pg.ID)
			continue
		}
		name := fmt.Sprintf("%0*d%s", pad, rep.Pages+1, imaging.Extension(mime))
		if err := addZipFile(zw, name, data); err != nil {
			_ = zw.Close()
			return rep, fmt.Errorf("zip add image: %w", err)
		}
		rep.Pages++
	}

	manifest := buildComicInfoXML(w, opt, rep.Pages, hasCover)
	if err := addZipFile(zw, "ComicInfo.xml", []byte(manifest)); err != nil {
		_ = zw.Close()
		return rep, fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return rep, fmt.Errorf("close zip: %w", err)
	}
	return rep, nil
}

func buildComicInfoXML(w domain.Work, opt CBZOptions, pageCount int, hasCover bool) string {
	series := opt.Series
	if series == "" {
		series = w.Title
	}
	total := pageCount
	if hasCover {
		total++
	}
	buf := &bytes.Buffer{}
	buf.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	buf.WriteString("<ComicInfo xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\" xmlns:xsd=\"http://www.w3.org/2001/XMLSchema\">\n")
	fmt.Fprintf(buf, "  <Title>%s</Title>\n", xmlEsc(w.Title))
	fmt.Fprintf(buf, "  <Series>%s</Series>\n", xmlEsc(series))
	if strings.TrimSpace(w.Description) != "" {
		fmt.Fprintf(buf, "  <Summary>%s</Summary>\n", xmlEsc(w.Description))
	}
	if opt.Writer != "" {
		fmt.Fprintf(buf, "  <Writer>%s</Writer>\n", xmlEsc(opt.Writer))
	}
	fmt.Fprintf(buf, "  <PageCount>%d</PageCount>\n", total)
	if opt.RightToLeft {
		buf.WriteString("  <Manga>YesAndRightToLeft</Manga>\n")
	} else {
		buf.WriteString("  <Manga>No</Manga>\n")
	}
	buf.WriteString("  <Pages>\n")
	for i := 0; i < total; i++ {
		if hasCover && i == 0 {
			buf.WriteString("    <Page Image=\"0\" Type=\"FrontCover\"/>\n")
			continue
		}
		fmt.Fprintf(buf, "    <Page Image=\"%d\"/>\n", i)
	}
	buf.WriteString("  </Pages>\n")
	buf.WriteString("</ComicInfo>\n")
	return buf.String()
}
