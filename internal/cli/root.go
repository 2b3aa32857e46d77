/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */
// Package cli implements the draftbook command line. Every command drives a session.Session
// the same way the desktop shell does, so deletes go through the two-phase confirmation and
// every mutation is persisted by the attached backend.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"draftbook/internal/config"
	"draftbook/internal/crash"
	applog "draftbook/internal/log"
	"draftbook/internal/session"
	"draftbook/internal/storage"
	"draftbook/internal/telemetry"

	"github.com/spf13/cobra"
)

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags and the lazily opened session.
type RootOptions struct {
	DataDir string
	Backend string
	Format  string
	Verbose bool

	// Crash receives the data directory and session once they are open.
	Crash *crash.Target

	cfg      config.AppConfig
	backend  *storage.Backend
	previews *storage.PreviewCache
	sess     *session.Session
}

// NewRootCommand creates the draftbook root command. target may be nil.
func NewRootCommand(target *crash.Target) *cobra.Command {
	cmd, _ := newRoot(target)
	return cmd
}

func newRoot(target *crash.Target) (*cobra.Command, *RootOptions) {
	opts := &RootOptions{Crash: target}

	cmd := &cobra.Command{
		Use:           "draftbook",
		Short:         "draftbook - a drafting desk for novels and comics",
		Long:          "Manage a shelf of novel drafts (books and chapters) and a gallery of comics (comics and pages).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "config: %v (using defaults)\n", err)
			}
			opts.cfg = cfg
			initLogging(cmd, cfg, opts.Verbose)
			initTelemetry(cfg)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory (default from config)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (file|sqlite|memory, default from config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewUICommand(opts))
	cmd.AddCommand(NewBooksCommand(opts))
	cmd.AddCommand(NewChaptersCommand(opts))
	cmd.AddCommand(NewComicsCommand(opts))
	cmd.AddCommand(NewPagesCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd, opts
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, target *crash.Target, args []string) int {
	cmd, opts := newRoot(target)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if cerr := opts.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return GetExitCode(err)
}

func initLogging(cmd *cobra.Command, cfg config.AppConfig, verbose bool) {
	lo := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Output:    cmd.ErrOrStderr(),
	}
	if verbose {
		lo.Level = "debug"
	} else if lo.Level == "" {
		lo.Level = "warn"
	}
	applog.Init(lo)
}

func initTelemetry(cfg config.AppConfig) {
	tc := telemetry.FromEnv()
	if cfg.General.TelemetryOptIn {
		tc.OptIn = true
	}
	telemetry.SetDefault(telemetry.New(tc))
}

// printer returns the output printer of cmd.
func (o *RootOptions) printer(cmd *cobra.Command) Printer {
	return Printer{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// dataDir resolves --data-dir against the config.
func (o *RootOptions) dataDir() (string, error) {
	if o.DataDir != "" {
		return o.DataDir, nil
	}
	return o.cfg.ResolvedDataDir()
}

func (o *RootOptions) backendName() string {
	if o.Backend != "" {
		return o.Backend
	}
	if o.cfg.Storage.Backend != "" {
		return o.cfg.Storage.Backend
	}
	return storage.BackendFile
}

// Session opens the configured backend and a session on top of it. Later calls return the
// same session.
func (o *RootOptions) Session() (*session.Session, error) {
	if o.sess != nil {
		return o.sess, nil
	}
	b, err := o.openBackend()
	if err != nil {
		return nil, err
	}
	dir := b.Dir

	log := applog.WithComponent("cli")
	switch {
	case b.SQLite != nil:
		o.previews, err = storage.NewPreviewCache(b.SQLite.DB())
	case b.Name != storage.BackendMemory:
		o.previews, err = storage.OpenPreviewCache(dir)
	}
	if err != nil {
		log.Warn("preview cache unavailable", slog.Any("err", err))
		o.previews = nil
	}

	s, err := session.Open(session.Options{
		KV:       b.KV,
		Events:   telemetry.Default(),
		Previews: o.previews,
	})
	if err != nil {
		log.Warn("library load fell back to defaults", slog.Any("err", err))
	}
	o.sess = s
	if o.Crash != nil {
		o.Crash.Dir = dir
		o.Crash.State = s
	}
	return s, nil
}

// openBackend opens the configured storage backend without loading the libraries.
func (o *RootOptions) openBackend() (*storage.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	dir, err := o.dataDir()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve data directory", err)
	}
	name := o.backendName()
	keep := o.cfg.Storage.BackupsKeep
	if name == storage.BackendSQLite {
		keep = o.cfg.Storage.HistoryKeep
	}
	b, err := storage.OpenBackend(name, dir, keep)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open storage", err)
	}
	o.backend = b
	return b, nil
}

func (o *RootOptions) close() error {
	var errs []error
	if o.sess != nil {
		o.sess.Close()
		o.sess = nil
	}
	if o.previews != nil {
		if o.previews.MaxBytes > 0 {
			if err := o.previews.EvictToFit(context.Background(), o.previews.MaxBytes); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, o.previews.Close())
		o.previews = nil
	}
	if o.backend != nil {
		errs = append(errs, o.backend.Close())
		o.backend = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	telemetry.Default().Flush(ctx)
	return errors.Join(errs...)
}
