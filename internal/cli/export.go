/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */
package cli

import (
	"fmt"
	"strings"

	"draftbook/internal/domain"
	"draftbook/internal/export"

	"github.com/spf13/cobra"
)

// NewExportCommand writes books and comics to publishable files.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export books to PDF or EPUB and comics to CBZ",
	}
	cmd.AddCommand(newExportPDFCommand(opts))
	cmd.AddCommand(newExportEPUBCommand(opts))
	cmd.AddCommand(newExportCBZCommand(opts))
	cmd.AddCommand(newExportAllCommand(opts))
	return cmd
}

// zeroBased converts 1-based positions given on the command line.
func zeroBased(in []int) ([]int, error) {
	out := make([]int, 0, len(in))
	for _, n := range in {
		if n < 1 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("positions start at 1, got %d", n))
		}
		out = append(out, n-1)
	}
	return out, nil
}

func checkRange(sel []int, total int, noun string) error {
	for _, i := range sel {
		if i >= total {
			return NewExitError(ExitFailure, fmt.Sprintf("%s %d does not exist (have %d)", noun, i+1, total))
		}
	}
	return nil
}

func newExportPDFCommand(opts *RootOptions) *cobra.Command {
	var out string
	var chapters []int
	var pdf export.PDFOptions
	cmd := &cobra.Command{
		Use:   "pdf <book-id>",
		Short: "Export a book as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, err := lookupWork(s, domain.NovelsDescriptor(), args[0])
			if err != nil {
				return err
			}
			if pdf.Chapters, err = zeroBased(chapters); err != nil {
				return err
			}
			if err := checkRange(pdf.Chapters, len(w.Items), "chapter"); err != nil {
				return err
			}
			if pdf.FontPath == "" {
				pdf.FontPath = opts.cfg.Export.PDFFont
			}
			if pdf.Author == "" {
				pdf.Author = opts.cfg.Export.Author
			}
			if out == "" {
				out = export.FileName(w, export.FormatPDF)
			}
			if err := export.ExportNovelPDF(w, out, pdf); err != nil {
				return WrapExitError(ExitFailure, "export pdf", err)
			}
			return opts.printer(cmd).Result(map[string]any{"path": out}, "wrote "+out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().IntSliceVar(&chapters, "chapters", nil, "chapters to include, 1-based (default all)")
	cmd.Flags().StringVar(&pdf.FontPath, "font", "", "UTF-8 TrueType font (default from config)")
	cmd.Flags().Float64Var(&pdf.FontSize, "font-size", 11, "body font size in pt")
	cmd.Flags().StringVar(&pdf.PageSize, "page-size", "A5", "page size (A4, A5, Letter, ...)")
	cmd.Flags().StringVar(&pdf.Author, "author", "", "author shown on the title page")
	cmd.Flags().BoolVar(&pdf.NoCover, "no-cover", false, "skip the title page")
	return cmd
}

func newExportEPUBCommand(opts *RootOptions) *cobra.Command {
	var out string
	var chapters []int
	var epub export.EPUBOptions
	cmd := &cobra.Command{
		Use:   "epub <book-id>",
		Short: "Export a book as EPUB 3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, err := lookupWork(s, domain.NovelsDescriptor(), args[0])
			if err != nil {
				return err
			}
			if epub.Chapters, err = zeroBased(chapters); err != nil {
				return err
			}
			if err := checkRange(epub.Chapters, len(w.Items), "chapter"); err != nil {
				return err
			}
			if epub.Author == "" {
				epub.Author = opts.cfg.Export.Author
			}
			if epub.Language == "" {
				epub.Language = opts.cfg.Export.Language
			}
			if out == "" {
				out = export.FileName(w, export.FormatEPUB)
			}
			if err := export.ExportNovelEPUB(w, out, epub); err != nil {
				return WrapExitError(ExitFailure, "export epub", err)
			}
			return opts.printer(cmd).Result(map[string]any{"path": out}, "wrote "+out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().IntSliceVar(&chapters, "chapters", nil, "chapters to include, 1-based (default all)")
	cmd.Flags().StringVar(&epub.Author, "author", "", "dc:creator (default from config)")
	cmd.Flags().StringVar(&epub.Language, "lang", "", "dc:language (default from config)")
	return cmd
}

func newExportCBZCommand(opts *RootOptions) *cobra.Command {
	var out string
	var pages []int
	var cbz export.CBZOptions
	cmd := &cobra.Command{
		Use:   "cbz <comic-id>",
		Short: "Export a comic as a CBZ archive with ComicInfo.xml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, err := lookupWork(s, domain.ComicsDescriptor(), args[0])
			if err != nil {
				return err
			}
			if cbz.Pages, err = zeroBased(pages); err != nil {
				return err
			}
			if err := checkRange(cbz.Pages, len(w.Items), "page"); err != nil {
				return err
			}
			if cbz.Writer == "" {
				cbz.Writer = opts.cfg.Export.Author
			}
			if out == "" {
				out = export.FileName(w, export.FormatCBZ)
			}
			rep, err := export.ExportComicCBZ(w, out, cbz)
			if err != nil {
				return WrapExitError(ExitFailure, "export cbz", err)
			}
			text := fmt.Sprintf("wrote %s (%d pages)", rep.Path, rep.Pages)
			if len(rep.Skipped) > 0 {
				text += fmt.Sprintf("; skipped %d without an embedded image: %s", len(rep.Skipped), strings.Join(rep.Skipped, ", "))
			}
			return opts.printer(cmd).Result(rep, text)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().IntSliceVar(&pages, "pages", nil, "pages to include, 1-based (default all)")
	cmd.Flags().StringVar(&cbz.Writer, "writer", "", "ComicInfo Writer (default config author)")
	cmd.Flags().StringVar(&cbz.Series, "series", "", "ComicInfo Series")
	cmd.Flags().BoolVar(&cbz.RightToLeft, "rtl", false, "mark as right-to-left (manga) reading order")
	cmd.Flags().BoolVar(&cbz.NoCover, "no-cover", false, "leave out the cover image")
	return cmd
}

func newExportAllCommand(opts *RootOptions) *cobra.Command {
	var outDir, only string
	var formats []string
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Export every book and comic in their default formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := []domain.Kind{domain.Novels, domain.Comics}
			if only != "" {
				k, err := domain.ParseKind(only)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --domain", err)
				}
				kinds = []domain.Kind{k}
			}
			var fs []export.Format
			for _, f := range formats {
				pf, err := export.ParseFormat(f)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --formats", err)
				}
				fs = append(fs, pf)
			}
			s, err := opts.Session()
			if err != nil {
				return err
			}
			var written []string
			for _, k := range kinds {
				bo := export.BatchOptions{
					OutDir: outDir,
					PDF:    export.PDFOptions{FontPath: opts.cfg.Export.PDFFont, Author: opts.cfg.Export.Author},
					EPUB:   export.EPUBOptions{Author: opts.cfg.Export.Author, Language: opts.cfg.Export.Language},
					CBZ:    export.CBZOptions{Writer: opts.cfg.Export.Author},
				}
				for _, f := range fs {
					if export.Supports(k, f) {
						bo.Formats = append(bo.Formats, f)
					}
				}
				if len(fs) > 0 && len(bo.Formats) == 0 {
					continue
				}
				paths, err := export.ExportLibrary(k, s.Library(k), bo)
				written = append(written, paths...)
				if err != nil {
					return WrapExitError(ExitFailure, "export "+string(k), err)
				}
			}
			text := strings.Join(written, "\n")
			if len(written) == 0 {
				text = "nothing to export"
			}
			return opts.printer(cmd).Result(written, text)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "export", "output directory")
	cmd.Flags().StringVar(&only, "domain", "", "only novels or comics")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "formats to write (pdf,epub,cbz; default per domain)")
	return cmd
}
