// Package aggregate folds per-module extraction results into the unified
// general statistics table and data sources index for one run.
package aggregate

import (
	"crypto/rand"
	"encoding/hex"
	"slices"

	"github.com/statweave/statweave/internal/module"
)

// runIDBytes is the length of the random run identifier in bytes.
const runIDBytes = 8

// Column identifies one general-statistics table column. Metric names are
// qualified by the contributing module, so two modules reporting the same
// metric name for the same sample keep both values.
type Column struct {
	ModuleID string
	Metric   string
}

// Key returns the module-qualified column identity.
func (c Column) Key() string {
	return c.ModuleID + "." + c.Metric
}

// Table is the cross-module general statistics table. Row order is
// first-seen sample order; column order follows module run order.
type Table struct {
	columns   []Column
	columnSet map[string]struct{}
	samples   []string
	sampleSet map[string]struct{}
	cells     map[string]map[string]float64
}

// NewTable creates an empty general statistics table.
func NewTable() *Table {
	return &Table{
		columnSet: make(map[string]struct{}),
		sampleSet: make(map[string]struct{}),
		cells:     make(map[string]map[string]float64),
	}
}

// merge folds one module's per-sample metrics into the table. Samples are
// visited in sorted order and metrics sorted per sample, so the first-seen
// row and column ordering is identical across runs with identical inputs.
func (t *Table) merge(res *module.Result) {
	for _, sample := range res.SampleIDs() {
		metrics := res.GeneralStats[sample]

		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}

		slices.Sort(names)

		t.addSample(sample)

		for _, name := range names {
			col := Column{ModuleID: res.ModuleID, Metric: name}
			t.addColumn(col)
			t.cells[sample][col.Key()] = metrics[name]
		}
	}
}

func (t *Table) addSample(sample string) {
	if _, exists := t.sampleSet[sample]; exists {
		return
	}

	t.sampleSet[sample] = struct{}{}
	t.samples = append(t.samples, sample)
	t.cells[sample] = make(map[string]float64)
}

func (t *Table) addColumn(col Column) {
	if _, exists := t.columnSet[col.Key()]; exists {
		return
	}

	t.columnSet[col.Key()] = struct{}{}
	t.columns = append(t.columns, col)
}

// Samples returns the table's sample identifiers in row order.
func (t *Table) Samples() []string {
	return slices.Clone(t.samples)
}

// Columns returns the table's columns in order.
func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Value returns the cell for a sample and column key.
func (t *Table) Value(sample, columnKey string) (float64, bool) {
	row, ok := t.cells[sample]
	if !ok {
		return 0, false
	}

	value, ok := row[columnKey]

	return value, ok
}

// Row returns a copy of one sample's column-key-to-value mapping.
func (t *Table) Row(sample string) map[string]float64 {
	row, ok := t.cells[sample]
	if !ok {
		return nil
	}

	out := make(map[string]float64, len(row))
	for key, value := range row {
		out[key] = value
	}

	return out
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.samples) == 0
}

// SourceRef records one contributing source file with module attribution.
type SourceRef struct {
	ModuleID string `json:"module" yaml:"module"`
	Path     string `json:"path"   yaml:"path"`
}

// SourcesIndex is the per-sample record of which files, from which modules,
// produced each sample's data.
type SourcesIndex struct {
	samples   []string
	sampleSet map[string]struct{}
	refs      map[string][]SourceRef
}

// NewSourcesIndex creates an empty data sources index.
func NewSourcesIndex() *SourcesIndex {
	return &SourcesIndex{
		sampleSet: make(map[string]struct{}),
		refs:      make(map[string][]SourceRef),
	}
}

// merge accumulates one module's per-sample source paths.
func (si *SourcesIndex) merge(res *module.Result) {
	samples := make([]string, 0, len(res.Sources))
	for sample := range res.Sources {
		samples = append(samples, sample)
	}

	slices.Sort(samples)

	for _, sample := range samples {
		if _, exists := si.sampleSet[sample]; !exists {
			si.sampleSet[sample] = struct{}{}
			si.samples = append(si.samples, sample)
		}

		for _, path := range res.Sources[sample] {
			si.refs[sample] = append(si.refs[sample], SourceRef{ModuleID: res.ModuleID, Path: path})
		}
	}
}

// Samples returns sample identifiers in first-seen order.
func (si *SourcesIndex) Samples() []string {
	return slices.Clone(si.samples)
}

// Refs returns the source references for one sample in contribution order.
func (si *SourcesIndex) Refs(sample string) []SourceRef {
	return slices.Clone(si.refs[sample])
}

// Report is the accumulated state across all modules for one run. It is
// built incrementally by the orchestrator and read-only once finalized.
type Report struct {
	// RunID is the stable per-run identifier embedded in the rendered
	// report for client-side state keying.
	RunID string

	// Title is the configured report title.
	Title string

	// GeneralStats is the merged cross-module statistics table.
	GeneralStats *Table

	// DataSources is the merged per-sample source file index.
	DataSources *SourcesIndex

	results       []*module.Result
	failedModules []string
}

// NewReport creates an empty aggregate report with a fresh run identifier.
func NewReport(title string) *Report {
	return &Report{
		RunID:        newRunID(),
		Title:        title,
		GeneralStats: NewTable(),
		DataSources:  NewSourcesIndex(),
	}
}

// Add merges one module result. Results must be added in module run order;
// insertion order determines table column grouping.
func (r *Report) Add(res *module.Result) {
	r.results = append(r.results, res)
	r.GeneralStats.merge(res)
	r.DataSources.merge(res)
}

// RecordFailure records a module identifier whose invocation failed.
func (r *Report) RecordFailure(moduleID string) {
	r.failedModules = append(r.failedModules, moduleID)
}

// Results returns the module results in run order.
func (r *Report) Results() []*module.Result {
	return slices.Clone(r.results)
}

// FailedModules returns the identifiers of failed modules in run order.
func (r *Report) FailedModules() []string {
	return slices.Clone(r.failedModules)
}

// HasFailures reports whether any module failed during the run.
func (r *Report) HasFailures() bool {
	return len(r.failedModules) > 0
}

// newRunID returns a random 16-hex-digit run identifier.
func newRunID() string {
	buf := make([]byte, runIDBytes)

	_, err := rand.Read(buf)
	if err != nil {
		// crypto/rand never fails on supported platforms.
		return "0000000000000000"
	}

	return hex.EncodeToString(buf)
}
