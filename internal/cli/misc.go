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
	"runtime"

	"draftbook/internal/domain"
	"draftbook/internal/ui"
	"draftbook/internal/version"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints the build version.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := map[string]string{
				"version": version.Version,
				"commit":  version.Commit,
				"go":      runtime.Version(),
			}
			return opts.printer(cmd).Result(data, "draftbook "+version.String())
		},
	}
}

// NewUICommand opens the desktop shell.
func NewUICommand(opts *RootOptions) *cobra.Command {
	var start string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the desktop app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseKind(start)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --domain", err)
			}
			s, err := opts.Session()
			if err != nil {
				return err
			}
			if err := ui.Run(s, ui.Options{Theme: opts.cfg.General.Theme, Domain: d}); err != nil {
				return WrapExitError(ExitCommandError, "ui", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "domain", "novels", "library to show first (novels|comics)")
	return cmd
}
