// =============================================================================
// NRML to HDF5 Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Called with a single
// file argument, the root command converts that file. The other commands are
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (nrml2hdf5 <fname>)
//   ├── batchCmd    (nrml2hdf5 batch <glob>...)
//   ├── validateCmd (nrml2hdf5 validate <fname>)
//   ├── inspectCmd  (nrml2hdf5 inspect <file.hdf5>)
//   ├── reportCmd   (nrml2hdf5 report <fname> --out <file.xlsx>)
//   └── versionCmd  (nrml2hdf5 version)
//
// EXIT CODES:
//   0 - success
//   1 - the conversion (or any other command) failed
//   2 - wrong arguments or flags
//
// OUTPUT:
//   Results ("Saved <path>") go to stdout. Errors and logs go to stderr.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/nrml2hdf5/internal/config"
	"github.com/ginjaninja78/nrml2hdf5/internal/converter"
	"github.com/ginjaninja78/nrml2hdf5/internal/hdf5store"
	"github.com/ginjaninja78/nrml2hdf5/internal/logging"
	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
)

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	stepColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds what the commands share for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// cfgFile is the path given with --config. Empty means defaults.
	cfgFile string

	// verbose forces debug logging.
	verbose bool

	// convOpts are passed to every converter the commands build.
	convOpts []converter.Option

	// readContainer loads a source model back from an HDF5 file.
	readContainer func(path string) (*sourcemodel.SourceModel, error)

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

// setup loads the configuration and the logger. It runs before every command.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(cfg.Logging, a.stderr, a.verbose)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	logger.Debug("config.loaded", "file", a.cfgFile, "naming", cfg.Output.Naming,
		"atomic", cfg.Output.IsAtomic())
	return nil
}

func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// converter builds a converter with the loaded configuration.
func (a *app) converter() *converter.Converter {
	opts := append([]converter.Option{converter.WithLogger(a.logger)}, a.convOpts...)
	return converter.New(a.cfg, opts...)
}

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nrml2hdf5 <fname>",
		Short: "Convert an NRML source model into an HDF5 file",
		Long: `nrml2hdf5 reads a seismic source model written in NRML (XML) and stores
it as an HDF5 container next to the input. The output name is the input name
with ".xml" replaced by ".hdf5".

Example Usage:
  nrml2hdf5 quakes/area_source.xml        # writes quakes/area_source.hdf5
  nrml2hdf5 batch 'models/**/*.xml'       # converts every matching file
  nrml2hdf5 validate model.xml            # checks a model without writing`,

		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(args[0])
		},
	}

	// --config flag: optional YAML configuration. Without it the built-in
	// discretization policy is used.
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"Path to a YAML configuration file")

	// --verbose flag: enables debug logging on stderr.
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Enable verbose output for debugging")

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	rootCmd.AddCommand(
		newBatchCommand(a),
		newValidateCommand(a),
		newInspectCommand(a),
		newReportCommand(a),
		newVersionCommand(a),
	)
	return rootCmd
}

// runConvert converts a single file and reports the saved path.
func (a *app) runConvert(fname string) error {
	result := a.converter().Run(fname)
	if !result.Success {
		return result.Cause
	}
	fmt.Fprintf(a.stdout, "Saved %s\n", result.OutputFile)
	return nil
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI with args and returns the process exit code. It is
// called by main.main().
func Execute(args []string, stdout, stderr io.Writer) int {
	return execute(args, stdout, stderr)
}

func execute(args []string, stdout, stderr io.Writer, hooks ...func(*app)) int {
	a := &app{stdout: stdout, stderr: stderr, readContainer: hdf5store.ReadFile}
	for _, hook := range hooks {
		hook(a)
	}
	rootCmd := newRootCommand(a)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if closeErr := a.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err == nil {
		return exitOK
	}

	errorColor.Fprintf(stderr, "Error: %v\n", err)
	code := exitCode(err)
	if code == exitUsage {
		cmd, _, findErr := rootCmd.Find(args)
		if findErr != nil || cmd == nil {
			cmd = rootCmd
		}
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return code
}
