// =============================================================================
// NRML to HDF5 Converter - Inspect Command
// =============================================================================
//
// This file defines the 'inspect' command, which reads an HDF5 container
// written by this tool and prints what it holds.
//
// COMMAND USAGE:
//   nrml2hdf5 inspect <file.hdf5>
//
// OUTPUT:
//   Model:               Area Source Model
//   NRML version:        0.5
//   Investigation time:  1
//   Groups:              1
//   Sources:             1
//
//   group    region                sources
//   group 1  Active Shallow Crust  1
//
// =============================================================================

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.hdf5>",
		Short: "Print a summary of a converted HDF5 file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.readContainer(args[0])
			if err != nil {
				return err
			}
			a.logger.Debug("hdf5.read", "file", args[0], "groups", len(model.Groups))
			return printModel(a, model)
		},
	}
}

func printModel(a *app, model *sourcemodel.SourceModel) error {
	stats := model.Stats()

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Model:\t%s\n", model.Name)
	fmt.Fprintf(tw, "NRML version:\t%s\n", model.NRMLVersion)
	fmt.Fprintf(tw, "Investigation time:\t%g\n", model.InvestigationTime)
	fmt.Fprintf(tw, "Groups:\t%d\n", stats.Groups)
	fmt.Fprintf(tw, "Sources:\t%d\n", stats.Sources)
	for _, kind := range sourcemodel.Kinds {
		if n := stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", kind, n)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout)
	tw = tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "group\tregion\tsources")
	for _, group := range model.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", group.Name, group.TectonicRegion, len(group.Sources))
	}
	return tw.Flush()
}
