package visualize

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// UsageChart renders per-operation tool invocation counts as a bar chart.
type UsageChart struct {
	counts map[string]int
}

// NewUsageChart creates a chart over a snapshot of invocation counters.
func NewUsageChart(counts map[string]int) *UsageChart {
	return &UsageChart{counts: counts}
}

// Generate builds the ECharts bar chart.
func (uc *UsageChart) Generate(title string) *charts.Bar {
	total := 0
	for _, n := range uc.counts {
		total += n
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d invocations across %d operations", total, len(uc.counts)),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "1200px",
			Height: "600px",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
	)

	names := make([]string, 0, len(uc.counts))
	for name := range uc.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]opts.BarData, 0, len(names))
	for _, name := range names {
		values = append(values, opts.BarData{Value: uc.counts[name]})
	}

	bar.SetXAxis(names).AddSeries("invocations", values)
	return bar
}

// Render writes the chart as a standalone HTML page.
func (uc *UsageChart) Render(w io.Writer, title string) error {
	return uc.Generate(title).Render(w)
}
