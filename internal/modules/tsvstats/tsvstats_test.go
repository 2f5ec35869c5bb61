package tsvstats_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/module"
	"github.com/statweave/statweave/internal/modules/tsvstats"
)

func candidate(t *testing.T, dir, name, payload string) discovery.CandidateFile {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	return discovery.CandidateFile{Path: path, Root: dir}
}

func TestExtract_ParsesTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := "sample\treads\tgc\ns1\t100\t45.2\ns2\t200\tbad\n"
	cf := candidate(t, dir, "align.statweave.tsv", payload)

	result, err := tsvstats.New().Extract([]discovery.CandidateFile{cf})
	require.NoError(t, err)

	require.Len(t, result.GeneralStats, 2)
	assert.InDelta(t, 100.0, result.GeneralStats["s1"]["reads"], 0.0001)
	assert.InDelta(t, 45.2, result.GeneralStats["s1"]["gc"], 0.0001)
	assert.InDelta(t, 200.0, result.GeneralStats["s2"]["reads"], 0.0001)

	// Unparseable cells are dropped, not errors.
	assert.NotContains(t, result.GeneralStats["s2"], "gc")

	assert.Equal(t, []string{cf.Path}, result.Sources["s1"])
}

func TestExtract_LaterFileOverwritesMetric(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := candidate(t, dir, "a.statweave.tsv", "sample\treads\ns1\t100\n")
	second := candidate(t, dir, "b.statweave.tsv", "sample\treads\ns1\t150\n")

	result, err := tsvstats.New().Extract([]discovery.CandidateFile{first, second})
	require.NoError(t, err)

	assert.InDelta(t, 150.0, result.GeneralStats["s1"]["reads"], 0.0001)
	assert.Equal(t, []string{first.Path, second.Path}, result.Sources["s1"])
}

func TestExtract_RepeatedSampleRowsRecordFileOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := "sample\treads\tgc\ns1\t100\t45.2\ns1\t150\t\n"
	cf := candidate(t, dir, "rerun.statweave.tsv", payload)

	result, err := tsvstats.New().Extract([]discovery.CandidateFile{cf})
	require.NoError(t, err)

	// The later row wins metric-by-metric; untouched metrics survive.
	assert.InDelta(t, 150.0, result.GeneralStats["s1"]["reads"], 0.0001)
	assert.InDelta(t, 45.2, result.GeneralStats["s1"]["gc"], 0.0001)

	assert.Equal(t, []string{cf.Path}, result.Sources["s1"])
}

func TestExtract_NoMatchingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cf := candidate(t, dir, "align.tsv", "sample\treads\ns1\t100\n")

	_, err := tsvstats.New().Extract([]discovery.CandidateFile{cf})
	require.ErrorIs(t, err, module.ErrNoSamples)
}

func TestExtract_HeaderOnlyTable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cf := candidate(t, dir, "empty.statweave.tsv", "sample\treads\n")

	result, err := tsvstats.New().Extract([]discovery.CandidateFile{cf})
	require.NoError(t, err)
	assert.Empty(t, result.GeneralStats)
}
