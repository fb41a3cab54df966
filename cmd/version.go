// =============================================================================
// NRML to HDF5 Converter - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information.
//
// COMMAND USAGE:
//   nrml2hdf5 version
//
// OUTPUT:
//   nrml2hdf5
//   Version:        1.0.0
//   Build Date:     2026-01-01
//   Go Version:     go1.24.0
//   Container:      nrml2hdf5 format 1
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/hdf5store"
)

// These variables are set at build time using ldflags.
// Example build command:
//   go build -ldflags "-X 'github.com/ginjaninja78/nrml2hdf5/cmd.Version=1.0.0'"

// Version is the application version.
var Version = "1.0.0"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the application version",
		Long:  `Display the application version, build date, Go runtime version and the container format version written.`,
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "nrml2hdf5")
			fmt.Fprintf(a.stdout, "Version:        %s\n", Version)
			fmt.Fprintf(a.stdout, "Build Date:     %s\n", BuildDate)
			fmt.Fprintf(a.stdout, "Go Version:     %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "Container:      %s format %d\n", hdf5store.FormatName, hdf5store.FormatVersion)
		},
	}
}
