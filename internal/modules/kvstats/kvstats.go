// Package kvstats extracts metrics from plain key/value stats files.
// It recognizes files named *_stats.txt containing "key: value" lines where
// the value parses as a number. One file contributes one sample.
package kvstats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/module"
)

// fileSuffix identifies files this module claims.
const fileSuffix = "_stats.txt"

// maxLineBytes caps the scanner buffer for a single stats line.
const maxLineBytes = 1 << 20

// Module extracts key/value stats files.
type Module struct{}

// New creates the kvstats module.
func New() module.Module {
	return &Module{}
}

// Descriptor returns stable module metadata.
func (m *Module) Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:          "kvstats",
		Description: "Key/value stats files (*_stats.txt)",
	}
}

// Extract parses every matching candidate file. Files with no parseable
// metric lines are ignored; if no file matches at all, the module signals
// a silent skip.
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

		metrics, err := parseFile(cf.Path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", cf.Path, err)
		}

		if len(metrics) == 0 {
			continue
		}

		sample := cf.Name()
		result.GeneralStats[sample] = metrics
		result.Sources[sample] = append(result.Sources[sample], cf.Path)
	}

	if !matched {
		return nil, module.ErrNoSamples
	}

	return result, nil
}

// parseFile reads "key: value" lines, keeping only numeric values.
// Malformed lines are skipped, not errors: tool logs routinely mix prose
// with metrics.
func parseFile(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	metrics := make(map[string]float64)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	for scanner.Scan() {
		key, rawValue, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		value, parseErr := strconv.ParseFloat(strings.TrimSpace(rawValue), 64)
		if parseErr != nil {
			continue
		}

		metrics[key] = value
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, scanErr
	}

	return metrics, nil
}
