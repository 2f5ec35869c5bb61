// Package module defines the extraction module contract and the registry
// that resolves run-sets from include/exclude selections.
package module

import (
	"errors"
	"slices"

	"github.com/statweave/statweave/internal/discovery"
)

// ErrNoSamples is the distinguished skip signal: the module found no files
// it recognizes. The orchestrator treats it as a silent skip, not a failure.
var ErrNoSamples = errors.New("no matching files")

// Descriptor contains stable module metadata.
type Descriptor struct {
	ID          string
	Description string
}

// Result is what a single extraction module produces for one run. It is
// owned by the orchestrator until handed to the aggregator and never
// mutated afterward.
type Result struct {
	// ModuleID is stamped by the orchestrator before aggregation.
	ModuleID string

	// GeneralStats maps sample identifier to metric name to value. The
	// mappings are merged into the cross-module general statistics table.
	GeneralStats map[string]map[string]float64

	// Sources maps sample identifier to the source file paths that
	// contributed its data, for the data-sources index.
	Sources map[string][]string

	// CSS and JS map destination-relative asset paths to source paths for
	// static files to stage into the build. Nil means no assets; most
	// modules declare none.
	CSS map[string]string
	JS  map[string]string
}

// SampleIDs returns the result's sample identifiers sorted lexically.
// Used for deterministic iteration over the per-module maps.
func (r *Result) SampleIDs() []string {
	ids := make([]string, 0, len(r.GeneralStats))
	for id := range r.GeneralStats {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Module is the extraction capability contract. Extract inspects the
// candidate files and either returns a Result, returns ErrNoSamples to be
// skipped silently, or returns any other error to be recorded as a failure.
type Module interface {
	Descriptor() Descriptor
	Extract(files []discovery.CandidateFile) (*Result, error)
}
