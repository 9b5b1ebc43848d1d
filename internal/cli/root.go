// Package cli implements the weft command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/ledger"
	"github.com/weftlabs/weft/internal/store"
)

// RootOptions holds the global flags shared by every command.
type RootOptions struct {
	Verbose  bool
	Format   string // "text" | "json"
	Database string
}

// ValidFormats lists the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the weft root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "weft",
		Short: "Weft - multi-machine conversation reconciliation",
		Long: `Weft reconciles conversation batches captured on multiple machines into
one canonical, deduplicated SQLite store, driven by a declarative sync
pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "weft.db", "path to the canonical SQLite store")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setupLogging routes slog to stderr, at debug level when verbose.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// openEngine opens the store, resumes the ledger, and builds an engine.
// The caller closes the returned store.
func openEngine(ctx context.Context, opts *RootOptions) (*store.Store, *engine.Engine, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open store", err)
	}
	led, err := ledger.Open(ctx, st)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	return st, engine.New(st, led), nil
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}
