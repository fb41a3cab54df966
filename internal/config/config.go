// =============================================================================
// NRML to HDF5 Converter - Configuration Module
// =============================================================================
//
// This module loads the optional YAML configuration file. Every setting has a
// default, so running without a file reproduces the fixed conversion policy
// (area source discretization 10 km, MFD bin width 0.1).
//
// CONFIGURATION FILE (config.yaml):
//   converter:
//     area_source_discretization: 10
//     mfd_bin_width: 0.1
//     investigation_time: 50
//     rupture_mesh_spacing: 5
//     complex_fault_mesh_spacing: 5
//   output:
//     naming: first      # first | suffix
//     atomic: true
//   logging:
//     level: warn        # debug | info | warn | error
//     file: ""
//   batch:
//     max_concurrency: 4
//     continue_on_error: true
//
// =============================================================================

package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/nrml2hdf5/internal/nrml"
)

// Output naming modes.
const (
	// NamingFirst replaces the first occurrence of ".xml" in the input path.
	NamingFirst = "first"

	// NamingSuffix replaces a trailing ".xml" extension only.
	NamingSuffix = "suffix"
)

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config holds the application configuration.
type Config struct {
	Converter ConverterSettings `yaml:"converter"`
	Output    OutputSettings    `yaml:"output"`
	Logging   LoggingSettings   `yaml:"logging"`
	Batch     BatchSettings     `yaml:"batch"`
}

// ConverterSettings is the discretization policy passed to the NRML parser.
type ConverterSettings struct {
	// AreaSourceDiscretization is the grid spacing in km for area sources.
	// Default: 10
	AreaSourceDiscretization float64 `yaml:"area_source_discretization"`

	// MFDBinWidth is the magnitude bin width of truncated GR distributions.
	// Default: 0.1
	MFDBinWidth float64 `yaml:"mfd_bin_width"`

	// InvestigationTime in years, used when the model does not declare one.
	// Default: 50
	InvestigationTime float64 `yaml:"investigation_time"`

	// RuptureMeshSpacing in km for simple fault sources.
	// Default: 5
	RuptureMeshSpacing float64 `yaml:"rupture_mesh_spacing"`

	// ComplexFaultMeshSpacing in km for complex fault sources.
	// Default: 5
	ComplexFaultMeshSpacing float64 `yaml:"complex_fault_mesh_spacing"`
}

// OutputSettings controls how output files are named and written.
type OutputSettings struct {
	// Naming is "first" or "suffix".
	// Default: "first"
	Naming string `yaml:"naming"`

	// Atomic writes through a temporary file renamed on success.
	// Default: true
	Atomic *bool `yaml:"atomic"`
}

// LoggingSettings controls diagnostic logging.
type LoggingSettings struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "warn"
	Level string `yaml:"level"`

	// File, when set, receives a copy of every log record.
	File string `yaml:"file"`
}

// BatchSettings controls the batch command.
type BatchSettings struct {
	// MaxConcurrency is the maximum number of files converted at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps converting after a file fails.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`
}

// IsAtomic reports whether output files are written atomically.
func (o OutputSettings) IsAtomic() bool {
	return o.Atomic == nil || *o.Atomic
}

// ShouldContinueOnError reports whether a batch keeps going after a failure.
func (b BatchSettings) ShouldContinueOnError() bool {
	return b.ContinueOnError == nil || *b.ContinueOnError
}

// ParserOptions converts the converter settings into NRML parser options.
func (c ConverterSettings) ParserOptions() nrml.Options {
	return nrml.Options{
		AreaSourceDiscretization: c.AreaSourceDiscretization,
		MFDBinWidth:              c.MFDBinWidth,
		InvestigationTime:        c.InvestigationTime,
		RuptureMeshSpacing:       c.RuptureMeshSpacing,
		ComplexFaultMeshSpacing:  c.ComplexFaultMeshSpacing,
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file. An empty path returns
//     the defaults.
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return Default(), nil
	}

	// Read the configuration file.
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse the YAML.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply default values.
	applyDefaults(&cfg)

	// Validate the configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	c := &cfg.Converter
	if c.AreaSourceDiscretization == 0 {
		c.AreaSourceDiscretization = nrml.DefaultAreaSourceDiscretization
	}
	if c.MFDBinWidth == 0 {
		c.MFDBinWidth = nrml.DefaultMFDBinWidth
	}
	if c.InvestigationTime == 0 {
		c.InvestigationTime = nrml.DefaultInvestigationTime
	}
	if c.RuptureMeshSpacing == 0 {
		c.RuptureMeshSpacing = nrml.DefaultRuptureMeshSpacing
	}
	if c.ComplexFaultMeshSpacing == 0 {
		c.ComplexFaultMeshSpacing = nrml.DefaultComplexFaultMeshSpacing
	}

	if cfg.Output.Naming == "" {
		cfg.Output.Naming = NamingFirst
	}
	if cfg.Output.Atomic == nil {
		cfg.Output.Atomic = boolPtr(true)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}

	if cfg.Batch.MaxConcurrency == 0 {
		cfg.Batch.MaxConcurrency = 4
	}
	if cfg.Batch.ContinueOnError == nil {
		cfg.Batch.ContinueOnError = boolPtr(true)
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Converter),
		validation.Field(&c.Output),
		validation.Field(&c.Logging),
		validation.Field(&c.Batch),
	)
}

// Validate checks the converter settings.
func (c ConverterSettings) Validate() error {
	positive := []validation.Rule{validation.Required, validation.Min(0.0).Exclusive()}
	return validation.ValidateStruct(&c,
		validation.Field(&c.AreaSourceDiscretization, positive...),
		validation.Field(&c.MFDBinWidth, positive...),
		validation.Field(&c.InvestigationTime, positive...),
		validation.Field(&c.RuptureMeshSpacing, positive...),
		validation.Field(&c.ComplexFaultMeshSpacing, positive...),
	)
}

// Validate checks the output settings.
func (o OutputSettings) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Naming, validation.Required, validation.In(NamingFirst, NamingSuffix)),
	)
}

// Validate checks the logging settings.
func (l LoggingSettings) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
	)
}

// Validate checks the batch settings.
func (b BatchSettings) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.MaxConcurrency, validation.Required, validation.Min(1)),
	)
}

func boolPtr(v bool) *bool {
	return &v
}
