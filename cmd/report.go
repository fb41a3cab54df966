// =============================================================================
// NRML to HDF5 Converter - Report Command
// =============================================================================
//
// This file defines the 'report' command, which writes an XLSX inventory of
// the sources of an NRML file.
//
// COMMAND USAGE:
//   nrml2hdf5 report <fname> [--out <file.xlsx>]
//
// FLAGS:
//   --out : Destination workbook (default: the input with ".xml" replaced
//           by ".xlsx")
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/report"
)

func newReportCommand(a *app) *cobra.Command {
	var out string

	reportCmd := &cobra.Command{
		Use:   "report <fname>",
		Short: "Write an XLSX inventory of the sources in an NRML file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(args[0], out)
		},
	}

	reportCmd.Flags().StringVarP(&out, "out", "o", "",
		"Destination workbook (default: input name with .xlsx)")
	return reportCmd
}

func (a *app) runReport(fname, out string) error {
	if out == "" {
		if !strings.Contains(fname, ".xml") {
			return usageError{err: fmt.Errorf("%s does not contain \".xml\"; use --out", fname)}
		}
		out = strings.Replace(fname, ".xml", ".xlsx", 1)
	}

	result := a.converter().Load(fname)
	if !result.Success {
		return result.Cause
	}
	if err := report.WriteInventory(result.Model, out); err != nil {
		return err
	}

	a.logger.Info("report.written", "file", fname, "output", out, "sources", result.Stats.Sources)
	fmt.Fprintf(a.stdout, "Saved %s\n", out)
	return nil
}
