package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/pipeline"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Pipeline   string
	BatchDir   string
	StagingDir string
}

// NewSyncCommand creates the sync command: run the full pipeline once.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the sync pipeline",
		Long: `Run the declarative sync pipeline: ingest every batch file from the
inbox, reconcile it into the canonical store, verify, report, and tear
down staging.

Example:
  weft sync --db ./weft.db --pipeline ./pipeline.yaml --batch-dir ./inbox`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "path to the pipeline YAML (required)")
	cmd.Flags().StringVar(&opts.BatchDir, "batch-dir", "", "inbox directory of batch files (required)")
	cmd.Flags().StringVar(&opts.StagingDir, "staging-dir", "", "staging directory (default <batch-dir>/.staging)")
	_ = cmd.MarkFlagRequired("pipeline")
	_ = cmd.MarkFlagRequired("batch-dir")

	return cmd
}

// syncSummary is the sync command's output payload.
type syncSummary struct {
	RunID  string             `json:"run_id"`
	Status pipeline.RunStatus `json:"status"`
	Halted bool               `json:"halted"`
	Totals pipeline.Totals    `json:"totals"`
	Steps  []syncStep         `json:"steps"`
}

type syncStep struct {
	Name     string              `json:"name"`
	Status   pipeline.StepStatus `json:"status"`
	Attempts int                 `json:"attempts"`
	Error    string              `json:"error,omitempty"`
}

func (s syncSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s\n", s.RunID, s.Status)
	for _, step := range s.Steps {
		fmt.Fprintf(&b, "  %-20s %-10s attempts=%d", step.Name, step.Status, step.Attempts)
		if step.Error != "" {
			fmt.Fprintf(&b, " error=%s", step.Error)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "batches=%d new=%d duplicates=%d merged=%d conflicts=%d",
		s.Totals.Batches, s.Totals.New, s.Totals.Duplicates, s.Totals.Merged, s.Totals.Conflicts)
	return b.String()
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	spec, err := pipeline.Load(opts.Pipeline)
	if err != nil {
		return WrapExitError(ExitCommandError, "load pipeline", err)
	}
	reg := pipeline.DefaultRegistry()
	if err := spec.Check(reg); err != nil {
		return WrapExitError(ExitCommandError, "check pipeline", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, eng, err := openEngine(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	staging := opts.StagingDir
	if staging == "" {
		staging = filepath.Join(opts.BatchDir, ".staging")
	}

	rc := &pipeline.RunContext{
		Store:      st,
		Engine:     eng,
		Log:        slog.Default(),
		RunID:      newRunID(),
		BatchDir:   opts.BatchDir,
		StagingDir: staging,
		Totals:     &pipeline.Totals{},
	}

	runner := pipeline.NewRunner(reg)
	result, runErr := runner.Run(ctx, spec, rc)

	out := formatter(cmd, opts.RootOptions)
	summary := syncSummary{
		RunID:  rc.RunID,
		Status: result.Status,
		Halted: result.Halted,
		Totals: *rc.Totals,
	}
	for _, s := range result.Steps {
		summary.Steps = append(summary.Steps, syncStep{
			Name:     s.Name,
			Status:   s.Status,
			Attempts: s.Attempts,
			Error:    s.Error(),
		})
	}
	if err := out.Success(summary); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}

	if runErr != nil {
		return WrapExitError(ExitHalted, "pipeline halted", runErr)
	}
	if result.Status == pipeline.RunFailed {
		return NewExitError(ExitHalted, "pipeline failed")
	}
	if rc.Totals.Conflicts > 0 {
		return NewExitError(ExitConflicts,
			fmt.Sprintf("completed with %d conflicts logged for manual resolution", rc.Totals.Conflicts))
	}
	return nil
}

// signalContext derives a context cancelled by SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newRunID mints a time-ordered run id.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
