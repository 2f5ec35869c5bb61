// Package config loads, merges, and validates statweave configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// Data export formats.
const (
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultTemplate is the template registry key used when none is configured.
const DefaultTemplate = "default"

// DefaultReportName is the report file name used when none is configured.
const DefaultReportName = "statweave_report.html"

// DefaultDataDirName is the companion data directory name.
const DefaultDataDirName = "statweave_data"

// StdoutFilename selects write-to-standard-output mode for the report.
const StdoutFilename = "-"

// ErrBadDataFormat is returned when the configured data export format is unknown.
var ErrBadDataFormat = errors.New("unknown data export format")

// ErrNoRoots is returned when neither analysis roots nor a file list is configured.
var ErrNoRoots = errors.New("no analysis roots or file list given")

// Config is the file/environment configuration layer. The CLI merges flags
// over it and produces the immutable RunConfig consumed by the core.
type Config struct {
	Title          string   `mapstructure:"title"`
	Modules        []string `mapstructure:"modules"`
	ExcludeModules []string `mapstructure:"exclude_modules"`
	Template       string   `mapstructure:"template"`
	OutputDir      string   `mapstructure:"output_dir"`
	Filename       string   `mapstructure:"filename"`
	Force          bool     `mapstructure:"force"`
	MakeDataDir    bool     `mapstructure:"make_data_dir"`
	DataFormat     string   `mapstructure:"data_format"`
	ZipDataDir     bool     `mapstructure:"zip_data_dir"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	IgnoreDirs     []string `mapstructure:"ignore_dirs"`

	SampleNames SampleNameConfig `mapstructure:"sample_names"`
}

// SampleNameConfig controls sample identifier cleaning.
type SampleNameConfig struct {
	// TrimSuffixes are removed from the end of a raw sample name, repeatedly,
	// until none match. Order matters: earlier suffixes are tried first.
	TrimSuffixes []string `mapstructure:"trim_suffixes"`

	// DisableClean keeps raw sample names verbatim.
	DisableClean bool `mapstructure:"disable_clean"`
}

// Validate checks cross-field consistency of a loaded Config.
func (c *Config) Validate() error {
	if c.DataFormat == "" {
		return nil
	}

	if !slices.Contains([]string{FormatTSV, FormatJSON, FormatYAML}, c.DataFormat) {
		return fmt.Errorf("%w: %s", ErrBadDataFormat, c.DataFormat)
	}

	return nil
}

// RunConfig is the fully resolved, immutable configuration for one run.
// It is constructed once by the CLI layer; nothing in the core mutates it.
type RunConfig struct {
	// Roots are the analysis root directories to walk.
	Roots []string

	// FileList, when non-empty, is a file containing candidate paths (one
	// per line) used instead of walking Roots.
	FileList string

	// Modules and ExcludeModules are include/exclude id patterns resolved
	// against the module registry.
	Modules        []string
	ExcludeModules []string

	// IgnorePatterns and IgnoreDirs filter discovery. Patterns match file
	// base names; IgnoreDirs prunes whole directories by base name.
	IgnorePatterns []string
	IgnoreDirs     []string

	// Template is the template registry key.
	Template string

	// Title is the report title shown in the rendered document.
	Title string

	// ReportPath is the destination report file, unless Stdout is set.
	ReportPath string

	// Stdout writes the rendered report to standard output, bypassing all
	// filesystem promotion.
	Stdout bool

	// Force authorizes overwriting a pre-existing report and data directory.
	Force bool

	// ExportData enables the companion machine-readable data directory.
	ExportData bool

	// DataDir is the destination data directory when ExportData is set.
	DataDir string

	// DataFormat selects tsv, json, or yaml for the data export.
	DataFormat string

	// ZipData archives the promoted data directory and removes the
	// uncompressed copy.
	ZipData bool

	// SampleNames holds the sample identifier cleaning rules.
	SampleNames SampleNameConfig
}

// Validate checks a resolved RunConfig before the orchestrator starts.
func (rc *RunConfig) Validate() error {
	if len(rc.Roots) == 0 && rc.FileList == "" {
		return ErrNoRoots
	}

	if rc.ExportData && !slices.Contains([]string{FormatTSV, FormatJSON, FormatYAML}, rc.DataFormat) {
		return fmt.Errorf("%w: %s", ErrBadDataFormat, rc.DataFormat)
	}

	return nil
}
