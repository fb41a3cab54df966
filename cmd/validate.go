// =============================================================================
// NRML to HDF5 Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which parses and checks a source
// model without writing anything.
//
// COMMAND USAGE:
//   nrml2hdf5 validate <fname>
//
// OUTPUT:
//   On success: "Valid <fname>: <n> groups, <m> sources"
//   On failure: one line per problem on stderr, exit code 1
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <fname>",
		Short: "Check an NRML source model without converting it",
		Long: `The validate command parses the given NRML file with the configured
discretization policy and checks every source. No output file is written.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(args[0])
		},
	}
}

func (a *app) runValidate(fname string) error {
	result := a.converter().Load(fname)
	if !result.Success {
		var modelErr *sourcemodel.ModelError
		if errors.As(result.Cause, &modelErr) && len(modelErr.Problems) > 1 {
			for _, p := range modelErr.Problems {
				errorColor.Fprintf(a.stderr, "  ✗ %s\n", p)
			}
			return fmt.Errorf("invalid source model: %d problems found in %s", len(modelErr.Problems), fname)
		}
		return result.Cause
	}

	fmt.Fprintf(a.stdout, "Valid %s: %d groups, %d sources\n",
		fname, result.Stats.Groups, result.Stats.Sources)
	return nil
}
