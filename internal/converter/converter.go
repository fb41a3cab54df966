// =============================================================================
// NRML to HDF5 Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It orchestrates the
// conversion pipeline for a single file, from NRML parsing to the HDF5
// container.
//
// CONVERSION PIPELINE:
//   1. Derive the output path from the input path
//   2. Parse the NRML file with the configured discretization policy
//   3. Validate the source model
//   4. Write the HDF5 container (atomically by default)
//
// The caller reports "Saved <path>" once Run succeeds.
//
// ERROR HANDLING:
//   Every failure is wrapped with a category and a text code at this
//   boundary. The underlying error is kept unchanged in Result.Cause.
//   Nothing is retried.
//
// CONCURRENCY:
//   A Converter holds no per-run state, so one instance may run several files
//   concurrently as long as they map to different output paths.
//
// =============================================================================

package converter

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/ginjaninja78/nrml2hdf5/internal/config"
	"github.com/ginjaninja78/nrml2hdf5/internal/hdf5store"
	"github.com/ginjaninja78/nrml2hdf5/internal/logging"
	"github.com/ginjaninja78/nrml2hdf5/internal/nrml"
	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
	"github.com/ginjaninja78/nrml2hdf5/pkg/utils"
)

// Text codes attached to conversion errors.
const (
	CodeParseFailed   = "NRML_PARSE_FAILED"
	CodeModelInvalid  = "SOURCE_MODEL_INVALID"
	CodeOutputInvalid = "OUTPUT_PATH_INVALID"
	CodeWriteFailed   = "HDF5_WRITE_FAILED"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of converting a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the HDF5 file. It is set as soon as the
	// output path is known, even if the write later fails.
	OutputFile string

	// Success indicates whether the conversion was successful.
	Success bool

	// Error is the categorized error if the conversion failed.
	Error error

	// Cause is the underlying error, unwrapped.
	Cause error

	// Code is the text code of Error.
	Code string

	// Stats contains processing statistics.
	Stats ProcessingStats

	// Model is the validated source model. It is only set by Load.
	Model *sourcemodel.SourceModel
}

// ProcessingStats contains statistics about the conversion.
type ProcessingStats struct {
	// Groups is the number of source groups written.
	Groups int

	// Sources is the number of sources written.
	Sources int

	// Datasets is the number of datasets in the container.
	Datasets int

	// ProcessingTime is the time taken to convert the file.
	ProcessingTime time.Duration
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// ParseFunc parses an NRML file into a source model.
type ParseFunc func(path string, opts nrml.Options) (*sourcemodel.SourceModel, error)

// Writer persists a source model and returns the number of datasets written.
type Writer interface {
	Write(path string, model *sourcemodel.SourceModel) (int, error)
}

// Option configures a Converter.
type Option func(*Converter)

// WithParser replaces the NRML parser.
func WithParser(parse ParseFunc) Option {
	return func(c *Converter) { c.parse = parse }
}

// WithWriter replaces the HDF5 writer.
func WithWriter(w Writer) Option {
	return func(c *Converter) { c.writer = w }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of NRML files to HDF5.
type Converter struct {
	settings config.ConverterSettings
	naming   string

	parse  ParseFunc
	writer Writer
	logger *slog.Logger
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - cfg: The application configuration. A nil cfg uses config.Default().
//   - opts: Collaborator overrides.
//
// RETURNS:
//   - A new Converter instance.
func New(cfg *config.Config, opts ...Option) *Converter {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Converter{
		settings: cfg.Converter,
		naming:   cfg.Output.Naming,
		parse:    nrml.Parse,
		writer:   hdf5store.Store{Atomic: cfg.Output.IsAtomic()},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Run executes the conversion pipeline for fname.
//
// RETURNS:
//   - A Result struct containing the outcome of the conversion.
func (c *Converter) Run(fname string) Result {
	startTime := time.Now()
	result := Result{FilePath: fname}

	outputPath, err := OutputPath(fname, c.naming)
	if err != nil {
		return c.fail(result, err, goerrors.CategoryValidation, CodeOutputInvalid, "invalid output path")
	}
	result.OutputFile = outputPath

	model, err := c.parse(fname, c.settings.ParserOptions())
	if err != nil {
		return c.fail(result, err, goerrors.CategoryValidation, CodeParseFailed, "failed to parse source model")
	}

	stats := model.Stats()
	c.logger.Debug("nrml.parsed", "file", fname, "version", model.NRMLVersion,
		"groups", stats.Groups, "sources", stats.Sources)

	if err := sourcemodel.Validate(model); err != nil {
		return c.fail(result, err, goerrors.CategoryValidation, CodeModelInvalid, "invalid source model")
	}

	datasets, err := c.writer.Write(outputPath, model)
	if err != nil {
		return c.fail(result, err, goerrors.CategoryCommand, CodeWriteFailed, "failed to write container")
	}

	result.Success = true
	result.Stats = ProcessingStats{
		Groups:         stats.Groups,
		Sources:        stats.Sources,
		Datasets:       datasets,
		ProcessingTime: time.Since(startTime),
	}
	size, _ := utils.GetFileSize(outputPath)
	c.logger.Info("hdf5.written", "file", fname, "output", outputPath,
		"datasets", datasets, "bytes", size, "elapsed", result.Stats.ProcessingTime)
	return result
}

// Load parses and validates fname without writing anything. On success
// the model is returned in Result.Model.
func (c *Converter) Load(fname string) Result {
	startTime := time.Now()
	result := Result{FilePath: fname}

	model, err := c.parse(fname, c.settings.ParserOptions())
	if err != nil {
		return c.fail(result, err, goerrors.CategoryValidation, CodeParseFailed, "failed to parse source model")
	}
	if err := sourcemodel.Validate(model); err != nil {
		return c.fail(result, err, goerrors.CategoryValidation, CodeModelInvalid, "invalid source model")
	}

	stats := model.Stats()
	result.Success = true
	result.Model = model
	result.Stats = ProcessingStats{
		Groups:         stats.Groups,
		Sources:        stats.Sources,
		ProcessingTime: time.Since(startTime),
	}
	return result
}

func (c *Converter) fail(result Result, err error, category goerrors.Category, code, message string) Result {
	result.Cause = err
	result.Code = code
	result.Error = wrap(err, category, code, message)
	c.logger.Debug("conversion.failed", "file", result.FilePath, "code", code, "error", err)
	return result
}

func wrap(err error, category goerrors.Category, code, message string) error {
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, category, message).WithTextCode(code)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputPath derives the HDF5 path from an NRML path.
//
// NAMING MODES:
//   - "first":  the first occurrence of ".xml" becomes ".hdf5"
//     (model.v1.xml.xml -> model.v1.hdf5.xml)
//   - "suffix": a trailing ".xml" becomes ".hdf5"
//     (model.v1.xml.xml -> model.v1.xml.hdf5)
//
// An input without a match is rejected so the output never collides with
// the input.
func OutputPath(fname, naming string) (string, error) {
	const from, to = ".xml", ".hdf5"

	switch naming {
	case config.NamingFirst, "":
		if !strings.Contains(fname, from) {
			return "", fmt.Errorf("%s does not contain %q", fname, from)
		}
		return strings.Replace(fname, from, to, 1), nil
	case config.NamingSuffix:
		if !strings.HasSuffix(fname, from) {
			return "", fmt.Errorf("%s does not end in %q", fname, from)
		}
		return strings.TrimSuffix(fname, from) + to, nil
	}
	return "", fmt.Errorf("unknown naming mode %q", naming)
}
