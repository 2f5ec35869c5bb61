package export_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statweave/statweave/internal/aggregate"
	"github.com/statweave/statweave/internal/config"
	"github.com/statweave/statweave/internal/export"
	"github.com/statweave/statweave/internal/module"
)

func sampleReport() *aggregate.Report {
	report := aggregate.NewReport("export test")
	report.Add(&module.Result{
		ModuleID: "A",
		GeneralStats: map[string]map[string]float64{
			"s1": {"reads": 100},
		},
		Sources: map[string][]string{"s1": {"/logs/s1.txt"}},
	})
	report.Add(&module.Result{
		ModuleID: "B",
		GeneralStats: map[string]map[string]float64{
			"s1": {"gc": 45.2},
			"s2": {"gc": 50.1},
		},
		Sources: map[string][]string{
			"s1": {"/logs/s1_b.txt"},
			"s2": {"/logs/s2_b.txt"},
		},
	})

	return report
}

func TestWriteDirRoundTrip(t *testing.T) {
	t.Parallel()

	formats := []string{config.FormatTSV, config.FormatJSON, config.FormatYAML}

	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			report := sampleReport()

			require.NoError(t, export.WriteDir(dir, report, format))

			statsPath := filepath.Join(dir, export.GeneralStatsBase+"."+format)
			sourcesPath := filepath.Join(dir, export.DataSourcesBase+"."+format)
			require.FileExists(t, statsPath)
			require.FileExists(t, sourcesPath)

			data, err := export.LoadTable(statsPath, format)
			require.NoError(t, err)

			want := map[string]map[string]float64{
				"s1": {"A.reads": 100, "B.gc": 45.2},
				"s2": {"B.gc": 50.1},
			}
			assert.Equal(t, want, data)
		})
	}
}

func TestWriteDir_BadFormat(t *testing.T) {
	t.Parallel()

	err := export.WriteDir(t.TempDir(), sampleReport(), "xml")
	require.ErrorIs(t, err, config.ErrBadDataFormat)
}

func TestLoadTable_BadFormat(t *testing.T) {
	t.Parallel()

	_, err := export.LoadTable("whatever", "xml")
	require.ErrorIs(t, err, config.ErrBadDataFormat)
}

func TestWriteTableTSV_EmptyCells(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := sampleReport()

	require.NoError(t, export.WriteDir(dir, report, config.FormatTSV))

	payload, err := os.ReadFile(filepath.Join(dir, export.GeneralStatsBase+".tsv"))
	require.NoError(t, err)

	// s2 has no A.reads value: the cell is empty, not zero.
	assert.Contains(t, string(payload), "s2\t\t50.1")
}
