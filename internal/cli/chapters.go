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
	"io"
	"os"
	"strings"

	"draftbook/internal/domain"
	"draftbook/internal/session"

	"github.com/spf13/cobra"
)

// ItemView is the listing form of a chapter or page.
type ItemView struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Size      int    `json:"size"` // payload length in bytes
	CreatedAt string `json:"createdAt"`
}

func itemView(i int, it domain.Item) ItemView {
	return ItemView{Index: i, ID: it.ID, Title: it.Title, Size: len(it.Payload), CreatedAt: stamp(it.CreatedAt)}
}

func lookupWork(s *session.Session, d domain.Descriptor, id string) (domain.Work, error) {
	w, ok := s.Store(d.Kind).Work(id)
	if !ok {
		return domain.Work{}, notFound(d.WorkNoun, id)
	}
	return w, nil
}

func lookupItem(s *session.Session, d domain.Descriptor, workID, itemID string) (domain.Work, domain.Item, int, error) {
	w, err := lookupWork(s, d, workID)
	if err != nil {
		return w, domain.Item{}, -1, err
	}
	idx, it := w.FindItem(itemID)
	if it == nil {
		return w, domain.Item{}, -1, notFound(d.ItemNoun, itemID)
	}
	return w, *it, idx, nil
}

func newItemsListCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:     fmt.Sprintf("list <%s-id>", d.WorkNoun),
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List the %ss of a %s", d.ItemNoun, d.WorkNoun),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, err := lookupWork(s, d, args[0])
			if err != nil {
				return err
			}
			views := make([]ItemView, len(w.Items))
			var b strings.Builder
			fmt.Fprintf(&b, "%s\n", w.Title)
			for i, it := range w.Items {
				views[i] = itemView(i, it)
				fmt.Fprintf(&b, "%3d  %-40s  %-30s  %d bytes\n", i, it.ID, it.Title, len(it.Payload))
			}
			if len(w.Items) == 0 {
				fmt.Fprintf(&b, "no %ss yet\n", d.ItemNoun)
			}
			return opts.printer(cmd).Result(views, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newItemsRemoveCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     fmt.Sprintf("rm <%s-id> <%s-id>", d.WorkNoun, d.ItemNoun),
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete a %s", d.ItemNoun),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, it, _, err := lookupItem(s, d, args[0], args[1])
			if err != nil {
				return err
			}
			s.RequestDeleteItem(d.Kind, w.ID, it.ID)
			what := fmt.Sprintf("%s %s %q of %q", d.ItemNoun, it.ID, it.Title, w.Title)
			return confirmOrCancel(cmd, opts, s, yes, what)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

// NewChaptersCommand manages the chapters of a book.
func NewChaptersCommand(opts *RootOptions) *cobra.Command {
	d := domain.NovelsDescriptor()
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: "Manage the chapters of a book",
	}
	cmd.AddCommand(newItemsListCommand(opts, d))
	cmd.AddCommand(newChaptersAddCommand(opts, d))
	cmd.AddCommand(newItemsRemoveCommand(opts, d))
	cmd.AddCommand(newChaptersMoveCommand(opts, d))
	cmd.AddCommand(newChaptersSetCommand(opts, d))
	cmd.AddCommand(newChaptersShowCommand(opts, d))
	return cmd
}

type chapterInput struct {
	title string
	text  string
	file  string
}

func (in *chapterInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.title, "title", "t", "", "chapter title")
	cmd.Flags().StringVar(&in.text, "text", "", "chapter text")
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "read the chapter text from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
}

// body returns the new text and whether one was given.
func (in *chapterInput) body(cmd *cobra.Command) (string, bool, error) {
	if cmd.Flags().Changed("text") {
		return in.text, true, nil
	}
	if in.file == "" {
		return "", false, nil
	}
	var data []byte
	var err error
	if in.file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(in.file)
	}
	if err != nil {
		return "", false, WrapExitError(ExitCommandError, "read chapter text", err)
	}
	return string(data), true, nil
}

// apply writes the title and text given on the command line to the chapter.
func (in *chapterInput) apply(cmd *cobra.Command, s *session.Session, workID, itemID string) error {
	if cmd.Flags().Changed("title") {
		s.RenameChapter(workID, itemID, in.title)
	}
	text, ok, err := in.body(cmd)
	if err != nil {
		return err
	}
	if ok {
		s.UpdateChapter(workID, itemID, text)
	}
	return nil
}

func newChaptersAddCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var in chapterInput
	cmd := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Append a chapter to a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			id, ok := s.AddChapter(args[0])
			if !ok {
				return notFound(d.WorkNoun, args[0])
			}
			if err := in.apply(cmd, s, args[0], id); err != nil {
				return err
			}
			_, it, idx, _ := lookupItem(s, d, args[0], id)
			return opts.printer(cmd).Result(itemView(idx, it), fmt.Sprintf("added chapter %s %q", id, it.Title))
		},
	}
	in.bind(cmd)
	return cmd
}

func newChaptersSetCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var in chapterInput
	cmd := &cobra.Command{
		Use:   "set <book-id> <chapter-id>",
		Short: "Replace the title or text of a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			if _, _, _, err := lookupItem(s, d, args[0], args[1]); err != nil {
				return err
			}
			if err := in.apply(cmd, s, args[0], args[1]); err != nil {
				return err
			}
			_, it, idx, _ := lookupItem(s, d, args[0], args[1])
			return opts.printer(cmd).Result(itemView(idx, it), fmt.Sprintf("updated chapter %s", it.ID))
		},
	}
	in.bind(cmd)
	return cmd
}

func newChaptersShowCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:     "show <book-id> <chapter-id>",
		Aliases: []string{"cat"},
		Short:   "Print the text of a chapter",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			if !s.SelectWork(d.Kind, args[0]) {
				return notFound(d.WorkNoun, args[0])
			}
			if !s.SelectItem(args[1]) {
				return notFound(d.ItemNoun, args[1])
			}
			a := s.View()
			return opts.printer(cmd).Result(a.Item, a.Item.Payload)
		},
	}
}

func newChaptersMoveCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:   "move <book-id> <chapter-id> <up|down>",
		Short: "Move a chapter one position up or down",
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
			moved := s.ReorderItem(d.Kind, w.ID, idx, dir)
			return movedResult(cmd, opts, moved, idx, dir, "chapter "+it.ID)
		},
	}
}
