// =============================================================================
// NRML to HDF5 Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the nrml2hdf5 CLI application. It
// delegates to the cmd package and exits with the code it returns.
//
// USAGE:
//   nrml2hdf5 <fname>          - Convert one NRML file to HDF5
//   nrml2hdf5 batch <glob>...  - Convert every matching NRML file
//   nrml2hdf5 validate <fname> - Check an NRML file without converting it
//   nrml2hdf5 inspect <file>   - Print a summary of an HDF5 file
//   nrml2hdf5 report <fname>   - Write an XLSX inventory of an NRML file
//   nrml2hdf5 version          - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parsing, domain model, HDF5 mapping, configuration
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"os"

	"github.com/ginjaninja78/nrml2hdf5/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
