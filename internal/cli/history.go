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
	"strconv"
	"strings"
	"time"

	"draftbook/internal/domain"
	"draftbook/internal/storage"

	"github.com/spf13/cobra"
)

// NewHistoryCommand lists and restores saved revisions of the libraries (sqlite backend).
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or restore saved revisions (sqlite backend)",
	}
	cmd.AddCommand(newHistoryListCommand(opts))
	cmd.AddCommand(newHistoryRestoreCommand(opts))
	return cmd
}

func (o *RootOptions) history() (*storage.SQLiteKV, error) {
	b, err := o.openBackend()
	if err != nil {
		return nil, err
	}
	if b.SQLite == nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("the %s backend keeps no history; use --backend sqlite", b.Name))
	}
	return b.SQLite, nil
}

func newHistoryListCommand(opts *RootOptions) *cobra.Command {
	var kind string
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List revisions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := domain.ParseKind(kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --domain", err)
			}
			h, err := opts.history()
			if err != nil {
				return err
			}
			revs, err := h.History(cmd.Context(), domain.DescriptorFor(k).StorageKey, limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list history", err)
			}
			var b strings.Builder
			for _, r := range revs {
				fmt.Fprintf(&b, "%6d  %s  %8d bytes\n", r.ID, r.TS.Local().Format(time.DateTime), r.Size)
			}
			if len(revs) == 0 {
				b.WriteString("no revisions")
			}
			return opts.printer(cmd).Result(revs, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().StringVar(&kind, "domain", "novels", "novels or comics")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of revisions")
	return cmd
}

func newHistoryRestoreCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <revision-id>",
		Short: "Make a revision the current library again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid revision id", err)
			}
			h, err := opts.history()
			if err != nil {
				return err
			}
			rev, value, err := h.RevisionValue(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "read revision", err)
			}
			if err := storage.Validate([]byte(value)); err != nil {
				return WrapExitError(ExitFailure, "revision is not a valid library", err)
			}
			lib, err := storage.Decode([]byte(value))
			if err != nil {
				return WrapExitError(ExitFailure, "revision is not a valid library", err)
			}
			what := fmt.Sprintf("revision %d of %s (%d works, %d items)", rev.ID, rev.Key, len(lib), lib.ItemCount())
			if !yes {
				return opts.printer(cmd).Result(map[string]any{"restored": false, "revision": rev},
					fmt.Sprintf("would restore %s; rerun with --yes to confirm", what))
			}
			if err := h.Set(rev.Key, value); err != nil {
				return WrapExitError(ExitFailure, "restore revision", err)
			}
			return opts.printer(cmd).Result(map[string]any{"restored": true, "revision": rev}, "restored "+what)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the restore")
	return cmd
}
