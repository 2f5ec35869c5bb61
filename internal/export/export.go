// Package export serializes the aggregated run data into the
// machine-readable companion directory.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/statweave/statweave/internal/aggregate"
	"github.com/statweave/statweave/internal/config"
)

// Base names of the exported files; the extension follows the format.
const (
	GeneralStatsBase = "statweave_general_stats"
	DataSourcesBase  = "statweave_sources"
)

// exportFileMode is the permission for exported data files.
const exportFileMode = 0o644

// tableDoc is the serialized form of the general statistics table for the
// structured formats. Field order preserves row and column ordering.
type tableDoc struct {
	RunID   string                        `json:"run_id"             yaml:"run_id"`
	Samples []string                      `json:"samples"            yaml:"samples"`
	Columns []string                      `json:"columns"            yaml:"columns"`
	Data    map[string]map[string]float64 `json:"data"               yaml:"data"`
}

// sourcesDoc is the serialized form of the data sources index.
type sourcesDoc struct {
	Samples []string                         `json:"samples" yaml:"samples"`
	Sources map[string][]aggregate.SourceRef `json:"sources" yaml:"sources"`
}

// WriteDir serializes the general statistics table and the data sources
// index into dir using the configured format. dir must already exist.
func WriteDir(dir string, rep *aggregate.Report, format string) error {
	statsPath := filepath.Join(dir, GeneralStatsBase+"."+format)

	err := writeTable(statsPath, rep, format)
	if err != nil {
		return fmt.Errorf("write general stats: %w", err)
	}

	sourcesPath := filepath.Join(dir, DataSourcesBase+"."+format)

	err = writeSources(sourcesPath, rep, format)
	if err != nil {
		return fmt.Errorf("write data sources: %w", err)
	}

	return nil
}

func writeTable(path string, rep *aggregate.Report, format string) error {
	if format == config.FormatTSV {
		return writeTableTSV(path, rep.GeneralStats)
	}

	doc := tableDoc{
		RunID:   rep.RunID,
		Samples: rep.GeneralStats.Samples(),
		Columns: columnKeys(rep.GeneralStats),
		Data:    tableData(rep.GeneralStats),
	}

	return writeStructured(path, doc, format)
}

func writeSources(path string, rep *aggregate.Report, format string) error {
	if format == config.FormatTSV {
		return writeSourcesTSV(path, rep.DataSources)
	}

	doc := sourcesDoc{
		Samples: rep.DataSources.Samples(),
		Sources: sourcesData(rep.DataSources),
	}

	return writeStructured(path, doc, format)
}

// writeTableTSV emits the table with a "sample" first column, column keys as
// the header, and empty cells where a sample has no value for a column.
func writeTableTSV(path string, table *aggregate.Table) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, exportFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	columns := table.Columns()

	header := make([]string, 0, len(columns)+1)
	header = append(header, "sample")

	for _, col := range columns {
		header = append(header, col.Key())
	}

	writeErr := w.Write(header)
	if writeErr != nil {
		return writeErr
	}

	for _, sample := range table.Samples() {
		row := make([]string, 0, len(columns)+1)
		row = append(row, sample)

		for _, col := range columns {
			value, ok := table.Value(sample, col.Key())
			if !ok {
				row = append(row, "")

				continue
			}

			row = append(row, strconv.FormatFloat(value, 'g', -1, 64))
		}

		writeErr = w.Write(row)
		if writeErr != nil {
			return writeErr
		}
	}

	w.Flush()

	return w.Error()
}

func writeSourcesTSV(path string, index *aggregate.SourcesIndex) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, exportFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	writeErr := w.Write([]string{"sample", "module", "source"})
	if writeErr != nil {
		return writeErr
	}

	for _, sample := range index.Samples() {
		for _, ref := range index.Refs(sample) {
			writeErr = w.Write([]string{sample, ref.ModuleID, ref.Path})
			if writeErr != nil {
				return writeErr
			}
		}
	}

	w.Flush()

	return w.Error()
}

func writeStructured(path string, doc any, format string) error {
	var (
		payload []byte
		err     error
	)

	switch format {
	case config.FormatJSON:
		payload, err = json.MarshalIndent(doc, "", "  ")
	case config.FormatYAML:
		payload, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("%w: %s", config.ErrBadDataFormat, format)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(path, payload, exportFileMode)
}

// LoadTable reads back an exported general statistics file and reproduces
// the sample to column-key to value mapping.
func LoadTable(path, format string) (map[string]map[string]float64, error) {
	switch format {
	case config.FormatTSV:
		return loadTableTSV(path)
	case config.FormatJSON, config.FormatYAML:
		return loadTableStructured(path, format)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrBadDataFormat, format)
	}
}

func loadTableStructured(path, format string) (map[string]map[string]float64, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc tableDoc

	switch format {
	case config.FormatJSON:
		err = json.Unmarshal(payload, &doc)
	case config.FormatYAML:
		err = yaml.Unmarshal(payload, &doc)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return doc.Data, nil
}

func loadTableTSV(path string) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1

	records, readErr := reader.ReadAll()
	if readErr != nil {
		return nil, readErr
	}

	if len(records) == 0 {
		return map[string]map[string]float64{}, nil
	}

	header := records[0]
	data := make(map[string]map[string]float64, len(records)-1)

	for _, row := range records[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}

		metrics := make(map[string]float64)

		for col := 1; col < len(row) && col < len(header); col++ {
			if row[col] == "" {
				continue
			}

			value, parseErr := strconv.ParseFloat(row[col], 64)
			if parseErr != nil {
				return nil, fmt.Errorf("parse cell %s/%s: %w", row[0], header[col], parseErr)
			}

			metrics[header[col]] = value
		}

		data[row[0]] = metrics
	}

	return data, nil
}

func columnKeys(table *aggregate.Table) []string {
	columns := table.Columns()

	keys := make([]string, len(columns))
	for i, col := range columns {
		keys[i] = col.Key()
	}

	return keys
}

func tableData(table *aggregate.Table) map[string]map[string]float64 {
	data := make(map[string]map[string]float64)
	for _, sample := range table.Samples() {
		data[sample] = table.Row(sample)
	}

	return data
}

func sourcesData(index *aggregate.SourcesIndex) map[string][]aggregate.SourceRef {
	data := make(map[string][]aggregate.SourceRef)
	for _, sample := range index.Samples() {
		data[sample] = index.Refs(sample)
	}

	return data
}
