package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/record"
)

// NewIngestCommand creates the ingest command: reconcile batch files
// directly, without the pipeline around them.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <batch-file>...",
		Short: "Reconcile one or more batch files",
		Long: `Reconcile extraction batch files into the canonical store, one SyncBatch
per file.

Example:
  weft ingest --db ./weft.db ./inbox/mac-01.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, rootOpts, args)
		},
	}
	return cmd
}

// ingestSummary is the ingest command's output payload.
type ingestSummary struct {
	Batches []*engine.BatchReport `json:"batches"`
}

func (s ingestSummary) String() string {
	var b strings.Builder
	for _, rep := range s.Batches {
		fmt.Fprintf(&b, "%s: new=%d duplicates=%d merged=%d conflicts=%d\n",
			rep.MachineID, rep.New, rep.Duplicates, rep.Merged, rep.Conflicts)
	}
	return strings.TrimRight(b.String(), "\n")
}

func runIngest(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, eng, err := openEngine(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	summary := ingestSummary{}
	conflicts := 0
	for _, path := range paths {
		batch, err := record.LoadBatch(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "load batch", err)
		}
		report, err := eng.SyncBatch(ctx, batch)
		if err != nil {
			return WrapExitError(ExitHalted, "sync batch", err)
		}
		summary.Batches = append(summary.Batches, report)
		conflicts += report.Conflicts
	}

	out := formatter(cmd, opts)
	if err := out.Success(summary); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if conflicts > 0 {
		return NewExitError(ExitConflicts,
			fmt.Sprintf("completed with %d conflicts logged for manual resolution", conflicts))
	}
	return nil
}
