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
	"errors"
	"fmt"
	"strings"
	"time"

	"draftbook/internal/domain"
	"draftbook/internal/imaging"
	"draftbook/internal/order"
	"draftbook/internal/session"

	"github.com/spf13/cobra"
)

// WorkView is the listing form of a book or comic.
type WorkView struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Cover       string `json:"cover"` // "embedded", a remote URL, or empty
	Items       int    `json:"items"`
	CreatedAt   string `json:"createdAt"`
}

func workView(i int, w domain.Work) WorkView {
	return WorkView{
		Index:       i,
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Cover:       coverLabel(w.CoverImage),
		Items:       len(w.Items),
		CreatedAt:   stamp(w.CreatedAt),
	}
}

func coverLabel(uri string) string {
	if imaging.IsDataURI(uri) {
		return "embedded"
	}
	return uri
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// NewBooksCommand manages the novels shelf.
func NewBooksCommand(opts *RootOptions) *cobra.Command {
	return newWorksCommand(opts, domain.NovelsDescriptor(), "books")
}

// NewComicsCommand manages the comics gallery.
func NewComicsCommand(opts *RootOptions) *cobra.Command {
	return newWorksCommand(opts, domain.ComicsDescriptor(), "comics")
}

func newWorksCommand(opts *RootOptions, d domain.Descriptor, use string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %ss", d.WorkNoun),
	}
	cmd.AddCommand(newWorksListCommand(opts, d))
	cmd.AddCommand(newWorksAddCommand(opts, d))
	cmd.AddCommand(newWorksEditCommand(opts, d))
	cmd.AddCommand(newWorksRemoveCommand(opts, d))
	cmd.AddCommand(newWorksMoveCommand(opts, d))
	return cmd
}

func newWorksListCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %ss in display order", d.WorkNoun),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			lib := s.Library(d.Kind)
			views := make([]WorkView, len(lib))
			var b strings.Builder
			for i, w := range lib {
				views[i] = workView(i, w)
				fmt.Fprintf(&b, "%3d  %-38s  %-30s  %d %ss\n", i, w.ID, w.Title, len(w.Items), d.ItemNoun)
			}
			if len(lib) == 0 {
				fmt.Fprintf(&b, "no %ss yet\n", d.WorkNoun)
			}
			return opts.printer(cmd).Result(views, strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newWorksAddCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var title, description, cover string
	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Create a %s", d.WorkNoun),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			s.OpenCreateForm(d.Kind)
			id, err := submitWorkForm(cmd, s, cover, title, description)
			if err != nil {
				return err
			}
			w, _ := s.Store(d.Kind).Work(id)
			return opts.printer(cmd).Result(workView(len(s.Library(d.Kind))-1, w), fmt.Sprintf("created %s %s", d.WorkNoun, id))
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "title (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image file")
	return cmd
}

func newWorksEditCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var title, description, cover string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: fmt.Sprintf("Change the title, description or cover of a %s", d.WorkNoun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, ok := s.Store(d.Kind).Work(args[0])
			if !ok {
				return notFound(d.WorkNoun, args[0])
			}
			if !cmd.Flags().Changed("title") {
				title = w.Title
			}
			if !cmd.Flags().Changed("description") {
				description = w.Description
			}
			s.OpenEditForm(d.Kind, w.ID)
			id, err := submitWorkForm(cmd, s, cover, title, description)
			if err != nil {
				return err
			}
			idx, _ := s.Library(d.Kind).Find(id)
			w, _ = s.Store(d.Kind).Work(id)
			return opts.printer(cmd).Result(workView(idx, w), fmt.Sprintf("updated %s %s", d.WorkNoun, id))
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&cover, "cover", "", "new cover image file")
	return cmd
}

// submitWorkForm fills the open form and submits it. The form is cancelled on any error.
func submitWorkForm(cmd *cobra.Command, s *session.Session, cover, title, description string) (string, error) {
	if cover != "" {
		if _, err := s.AttachCover(cmd.Context(), cover); err != nil {
			s.CancelForm()
			return "", WrapExitError(ExitFailure, "read cover", err)
		}
	}
	id, err := s.SubmitForm(title, description)
	if errors.Is(err, session.ErrEmptyTitle) {
		s.CancelForm()
		return "", WrapExitError(ExitFailure, "invalid --title", err)
	}
	if err != nil {
		s.CancelForm()
		return "", err
	}
	if id == "" {
		return "", NewExitError(ExitFailure, "the form was closed before it could be saved")
	}
	return id, nil
}

func newWorksRemoveCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete a %s and all its %ss", d.WorkNoun, d.ItemNoun),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.Session()
			if err != nil {
				return err
			}
			w, ok := s.Store(d.Kind).Work(args[0])
			if !ok {
				return notFound(d.WorkNoun, args[0])
			}
			s.RequestDeleteWork(d.Kind, w.ID)
			what := fmt.Sprintf("%s %s %q with %d %ss", d.WorkNoun, w.ID, w.Title, len(w.Items), d.ItemNoun)
			return confirmOrCancel(cmd, opts, s, yes, what)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

// confirmOrCancel resolves the pending delete: with yes it is confirmed, otherwise the
// target is printed and the request cancelled.
func confirmOrCancel(cmd *cobra.Command, opts *RootOptions, s *session.Session, yes bool, what string) error {
	t, _ := s.PendingDelete()
	if !yes {
		s.CancelDelete()
		return opts.printer(cmd).Result(map[string]any{"deleted": false, "target": t},
			fmt.Sprintf("would delete %s; rerun with --yes to confirm", what))
	}
	if !s.ConfirmDelete() {
		return NewExitError(ExitFailure, "nothing to delete")
	}
	return opts.printer(cmd).Result(map[string]any{"deleted": true, "target": t}, "deleted "+what)
}

func newWorksMoveCommand(opts *RootOptions, d domain.Descriptor) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <up|down>",
		Short: fmt.Sprintf("Move a %s one position up or down", d.WorkNoun),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(args[1])
			if err != nil {
				return err
			}
			s, err := opts.Session()
			if err != nil {
				return err
			}
			idx, w := s.Library(d.Kind).Find(args[0])
			if w == nil {
				return notFound(d.WorkNoun, args[0])
			}
			moved := s.ReorderWork(d.Kind, idx, dir)
			return movedResult(cmd, opts, moved, idx, dir, d.WorkNoun+" "+w.ID)
		},
	}
}

func movedResult(cmd *cobra.Command, opts *RootOptions, moved bool, from int, dir order.Direction, what string) error {
	to := from
	if moved {
		to = from + dir.Offset()
	}
	text := fmt.Sprintf("moved %s to position %d", what, to)
	if !moved {
		text = fmt.Sprintf("%s is already at the edge (position %d)", what, from)
	}
	return opts.printer(cmd).Result(map[string]any{"moved": moved, "from": from, "to": to}, text)
}

func parseDirection(s string) (order.Direction, error) {
	dir, err := order.ParseDirection(strings.ToLower(s))
	if err != nil {
		return dir, WrapExitError(ExitCommandError, "invalid direction", err)
	}
	return dir, nil
}

func notFound(noun, id string) error {
	return NewExitError(ExitFailure, fmt.Sprintf("no %s with id %q", noun, id))
}
