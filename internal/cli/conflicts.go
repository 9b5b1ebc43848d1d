package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/record"
)

// NewConflictsCommand creates the conflicts command: list dual-retained
// pairs awaiting manual resolution.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List dual-retained conflict pairs",
		Long: `List live records tagged with a conflict group. Pairs share a group id
and stay adjacent in the output.

Example:
  weft conflicts --db ./weft.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflicts(cmd, rootOpts)
		},
	}
	return cmd
}

// conflictsSummary is the conflicts command's output payload.
type conflictsSummary struct {
	Conflicts []record.Conversation `json:"conflicts"`
}

func (s conflictsSummary) String() string {
	if len(s.Conflicts) == 0 {
		return "no conflicts"
	}
	var b strings.Builder
	group := ""
	for _, c := range s.Conflicts {
		if c.ConflictGroup != group {
			group = c.ConflictGroup
			fmt.Fprintf(&b, "group %s\n", group)
		}
		fmt.Fprintf(&b, "  %s  machine=%s title=%q messages=%d\n",
			c.ID, c.MachineID, c.Title, len(c.Messages))
	}
	return strings.TrimRight(b.String(), "\n")
}

func runConflicts(cmd *cobra.Command, opts *RootOptions) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, _, err := openEngine(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	conflicts, err := st.ListConflicts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "list conflicts", err)
	}

	out := formatter(cmd, opts)
	if err := out.Success(conflictsSummary{Conflicts: conflicts}); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
