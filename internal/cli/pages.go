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
	"os"
	"strconv"
	"strings"

	"draftbook/internal/domain"

	"github.com/spf13/cobra"
)

// NewPagesCommand manages the pages of a comic. Pages are added and moved through the reader,
// so the reader cursor follows the page the same way it does on screen.
func NewPagesCommand(opts *RootOptions) *cobra.Command {
	d := domain.ComicsDescriptor()
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage the pages of a comic",
	}
	cmd.AddCommand(newItemsListCommand(opts, d))
	cmd.AddCommand(newPagesAddCommand(opts, d))
	cmd.AddCommand(newItemsRemoveCommand(opts, d))
	cmd.AddCommand(newPagesMoveCommand(opts, d))
	cmd.AddCommand(newPagesThumbCommand(opts, d))
	return cmd
}

func newPagesAddCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:   "add <comic-id> <image>...",
		Short: "Append page images to a comic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			if !s.SelectWork(d.Kind, args[0]) {
				return notFound(d.WorkNoun, args[0])
			}
			var added []ItemView
			var b strings.Builder
			for _, path := range args[1:] {
				id, err := s.AddPage(cmd.Context(), path)
				if err != nil {
					return WrapExitError(ExitFailure, "add page "+path, err)
				}
				a := s.View()
				if id == "" || a.Item == nil {
					return NewExitError(ExitFailure, "the reader closed before "+path+" was added")
				}
				added = append(added, itemView(a.ItemIndex, *a.Item))
				fmt.Fprintf(&b, "added page %d %s from %s\n", a.ItemIndex+1, id, path)
			}
			return opts.printer(cmd).Result(added, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newPagesMoveCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:   "move <comic-id> <page-id> <left|right>",
		Short: "Move a page one position toward the front or back",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(args[2])
			if err != nil {
				return err
			}
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, it, idx, err := lookupItem(s, d, args[0], args[1])
			if err != nil {
				return err
			}
			s.SelectWork(d.Kind, w.ID)
			s.JumpToPage(idx)
			moved := s.MovePage(dir)
			return movedResult(cmd, opts, moved, idx, dir, "page "+it.ID)
		},
	}
}

func newPagesThumbCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var out, size string
	cmd := &cobra.Command{
		Use:   "thumb <comic-id> [page-id]",
		Short: "Write a PNG thumbnail of a page, or of the cover when no page is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parseSize(size)
			if err != nil {
				return err
			}
			s, err := opts.Session()
			if err != nil {
				return err
			}
			var itemID string
			if len(args) == 2 {
				itemID = args[1]
			}
			png, err := s.Thumbnail(cmd.Context(), d.Kind, args[0], itemID, w, h)
			if err != nil {
				return WrapExitError(ExitFailure, "render thumbnail", err)
			}
			if out == "" {
				out = args[0] + ".png"
				if itemID != "" {
					out = itemID + ".png"
				}
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write thumbnail", err)
			}
			return opts.printer(cmd).Result(map[string]any{"path": out, "bytes": len(png)}, "wrote "+out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <id>.png)")
	cmd.Flags().StringVar(&size, "size", "256x256", "bounding box WIDTHxHEIGHT")
	return cmd
}

// parseSize parses WIDTHxHEIGHT.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	w, werr := strconv.Atoi(ws)
	h, herr := strconv.Atoi(hs)
	if !ok || werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 0, 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid size %q (want WIDTHxHEIGHT)", s))
	}
	return w, h, nil
}
