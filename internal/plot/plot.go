// Package plot renders the general-statistics overview chart embedded in
// the report.
package plot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/statweave/statweave/internal/aggregate"
)

const (
	chartWidth  = "100%"
	chartHeight = "420px"
)

// GeneralStatsBar renders a bar chart of the table's first column across
// all samples and returns the embeddable HTML fragment. Returns an empty
// fragment when the table has no numeric columns.
func GeneralStatsBar(table *aggregate.Table) (string, error) {
	columns := table.Columns()
	if len(columns) == 0 {
		return "", nil
	}

	col := columns[0]
	samples := table.Samples()

	values := make([]opts.BarData, 0, len(samples))

	for _, sample := range samples {
		value, ok := table.Value(sample, col.Key())
		if !ok {
			values = append(values, opts.BarData{Value: "-"})

			continue
		}

		values = append(values, opts.BarData{Value: value})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: col.Key()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(samples)
	bar.AddSeries(col.Key(), values)

	var buf bytes.Buffer

	err := bar.Render(&buf)
	if err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	return extractChartContent(buf.String()), nil
}

// extractChartContent strips the full HTML page wrapper echarts emits,
// keeping only the chart container and its scripts.
func extractChartContent(html string) string {
	trimmed := strings.TrimSpace(html)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE") && !strings.HasPrefix(trimmed, "<html") {
		return html
	}

	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	return html[start:end]
}
