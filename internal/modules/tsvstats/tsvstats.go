// Package tsvstats extracts metrics from tab-separated tables.
// It recognizes files named *.statweave.tsv whose header row names the
// metric columns; each following row is one sample, first column the
// sample identifier.
package tsvstats

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/module"
)

// fileSuffix identifies files this module claims.
const fileSuffix = ".statweave.tsv"

// Module extracts tab-separated stats tables.
type Module struct{}

// New creates the tsvstats module.
func New() module.Module {
	return &Module{}
}

// Descriptor returns stable module metadata.
func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          "tsvstats",
		Description: "Tab-separated stats tables (*.statweave.tsv)",
	}
}

// Extract parses every matching candidate file. A later file's row for an
// already-seen sample overwrites metric-by-metric, matching last-writer-wins
// across repeated runs of the same tool.
func (m *Module) Extract(files []discovery.CandidateFile) (*module.Result, error) {
	result := &module.Result{
		GeneralStats: make(map[string]map[string]float64),
		Sources:      make(map[string][]string),
	}

	matched := false

	for _, cf := range files {
		if !strings.HasSuffix(cf.Name(), fileSuffix) {
			continue
		}

		matched = true

		parseErr := parseFileInto(cf, result)
		if parseErr != nil {
			return nil, fmt.Errorf("parse %s: %w", cf.Path, parseErr)
		}
	}

	if !matched {
		return nil, module.ErrNoSamples
	}

	return result, nil
}

// parseFileInto reads one TSV table and merges its rows into result.
func parseFileInto(cf discovery.CandidateFile, result *module.Result) error {
	f, err := os.Open(cf.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	records, readErr := reader.ReadAll()
	if readErr != nil {
		return readErr
	}

	if len(records) < 2 {
		return nil
	}

	header := records[0]

	for _, row := range records[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}

		sample := row[0]

		metrics := result.GeneralStats[sample]
		if metrics == nil {
			metrics = make(map[string]float64)
			result.GeneralStats[sample] = metrics
		}

		for col := 1; col < len(row) && col < len(header); col++ {
			value, parseErr := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if parseErr != nil {
				continue
			}

			metrics[header[col]] = value
		}

		// Repeated rows for one sample record the file only once.
		if !slices.Contains(result.Sources[sample], cf.Path) {
			result.Sources[sample] = append(result.Sources[sample], cf.Path)
		}
	}

	return nil
}
