package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/pipeline"
)

// NewValidateCommand creates the validate command: check a pipeline file
// against the embedded schema and the action registry without running it.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline-file>",
		Short: "Validate a pipeline file",
		Long: `Validate a pipeline YAML file: schema, step-name uniqueness, and action
registration.

Example:
  weft validate ./pipeline.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

// validateSummary is the validate command's output payload.
type validateSummary struct {
	Pipeline string `json:"pipeline"`
	Steps    int    `json:"steps"`
}

func (s validateSummary) String() string {
	return fmt.Sprintf("pipeline %q: %d steps, ok", s.Pipeline, s.Steps)
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	spec, err := pipeline.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "load pipeline", err)
	}
	if err := spec.Check(pipeline.DefaultRegistry()); err != nil {
		return WrapExitError(ExitCommandError, "check pipeline", err)
	}

	out := formatter(cmd, opts)
	if err := out.Success(validateSummary{Pipeline: spec.Name, Steps: len(spec.Steps)}); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
