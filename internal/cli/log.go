package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/record"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Machine string
}

// NewLogCommand creates the log command: inspect the sync audit trail.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the sync audit log",
		Long: `Print the append-only sync log in logical order.

Example:
  weft log --db ./weft.db --machine mac-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Machine, "machine", "", "filter by machine id")
	return cmd
}

// logSummary is the log command's output payload.
type logSummary struct {
	Entries []record.SyncLogEntry `json:"entries"`
}

func (s logSummary) String() string {
	if len(s.Entries) == 0 {
		return "log is empty"
	}
	var b strings.Builder
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "%6d  %-8s %-8s %-7s %s",
			e.Seq, e.MachineID, e.Op, e.Status, e.At.UTC().Format(time.RFC3339))
		if e.Note != "" {
			fmt.Fprintf(&b, "  %s", e.Note)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func runLog(cmd *cobra.Command, opts *LogOptions) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, _, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListSyncLog(ctx, opts.Machine)
	if err != nil {
		return WrapExitError(ExitCommandError, "read sync log", err)
	}

	out := formatter(cmd, opts.RootOptions)
	if err := out.Success(logSummary{Entries: entries}); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
