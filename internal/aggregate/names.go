package aggregate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/statweave/statweave/internal/config"
	"github.com/statweave/statweave/internal/module"
)

// Cleaner applies the configured sample identifier cleaning rules.
type Cleaner struct {
	rules config.SampleNameConfig
}

// NewCleaner creates a Cleaner for the given rules.
func NewCleaner(rules config.SampleNameConfig) *Cleaner {
	return &Cleaner{rules: rules}
}

// Clean normalizes one raw sample name: whitespace is trimmed and configured
// suffixes are stripped repeatedly until none match. A name that cleans to
// the empty string falls back to the raw name.
func (c *Cleaner) Clean(raw string) string {
	name := strings.TrimSpace(raw)
	if c.rules.DisableClean {
		return name
	}

	for {
		trimmed := false

		for _, suffix := range c.rules.TrimSuffixes {
			if suffix != "" && strings.HasSuffix(name, suffix) {
				name = name[:len(name)-len(suffix)]
				trimmed = true

				break
			}
		}

		if !trimmed {
			break
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return strings.TrimSpace(raw)
	}

	return name
}

// CleanResult returns a copy of res with cleaned, deduplicated sample keys.
// When two distinct raw names in the same result clean to the same name, the
// later one (in sorted raw order) gets a numeric suffix: name_1, name_2, ...
// The input result is not modified.
func (c *Cleaner) CleanResult(res *module.Result) *module.Result {
	out := &module.Result{
		ModuleID:     res.ModuleID,
		GeneralStats: make(map[string]map[string]float64, len(res.GeneralStats)),
		Sources:      make(map[string][]string, len(res.Sources)),
		CSS:          res.CSS,
		JS:           res.JS,
	}

	renames := c.renameTable(res)

	for raw, metrics := range res.GeneralStats {
		out.GeneralStats[renames[raw]] = metrics
	}

	for raw, paths := range res.Sources {
		out.Sources[renames[raw]] = paths
	}

	return out
}

// renameTable maps every raw sample name in res to its final cleaned,
// deduplicated name. Raw names are processed in sorted order so the suffix
// assignment is deterministic.
func (c *Cleaner) renameTable(res *module.Result) map[string]string {
	raws := make([]string, 0, len(res.GeneralStats)+len(res.Sources))
	for raw := range res.GeneralStats {
		raws = append(raws, raw)
	}

	for raw := range res.Sources {
		if _, seen := res.GeneralStats[raw]; !seen {
			raws = append(raws, raw)
		}
	}

	slices.Sort(raws)

	renames := make(map[string]string, len(raws))
	taken := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		name := c.Clean(raw)

		final := name
		for suffix := 1; ; suffix++ {
			if _, exists := taken[final]; !exists {
				break
			}

			final = fmt.Sprintf("%s_%d", name, suffix)
		}

		taken[final] = struct{}{}
		renames[raw] = final
	}

	return renames
}
