// Package report renders filter runs as an interactive HTML page
// (go-echarts) and as static PNG plots (gonum/plot).
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no data")

// Point is a position in metres.
type Point struct {
	X, Y float64
}

// Trajectory holds the positions of one run. Radar readings are expected
// already converted to Cartesian.
type Trajectory struct {
	Title       string
	Estimates   []Point
	Laser       []Point
	Radar       []Point
	GroundTruth []Point
}

func (t Trajectory) empty() bool {
	return len(t.Estimates)+len(t.Laser)+len(t.Radar)+len(t.GroundTruth) == 0
}

// NISSeries is the NIS trace of one sensor with its chi-square threshold.
type NISSeries struct {
	Sensor    string
	Samples   []float64
	Threshold float64
}

func scatterData(pts []Point) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

func trajectoryChart(tr Trajectory) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: tr.Title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: tr.Title, Subtitle: fmt.Sprintf("estimates=%d laser=%d radar=%d", len(tr.Estimates), len(tr.Laser), len(tr.Radar))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	if len(tr.GroundTruth) > 0 {
		scatter.AddSeries("ground truth", scatterData(tr.GroundTruth), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}
	if len(tr.Laser) > 0 {
		scatter.AddSeries("laser", scatterData(tr.Laser), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}
	if len(tr.Radar) > 0 {
		scatter.AddSeries("radar", scatterData(tr.Radar), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}
	if len(tr.Estimates) > 0 {
		scatter.AddSeries("estimate", scatterData(tr.Estimates), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}
	return scatter
}

func nisChart(s NISSeries) *charts.Line {
	x := make([]int, len(s.Samples))
	vals := make([]opts.LineData, len(s.Samples))
	limit := make([]opts.LineData, len(s.Samples))
	for i, v := range s.Samples {
		x[i] = i + 1
		vals[i] = opts.LineData{Value: v}
		limit[i] = opts.LineData{Value: s.Threshold}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Sensor + " NIS", Subtitle: fmt.Sprintf("samples=%d threshold=%.3f", len(s.Samples), s.Threshold)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("nis", vals).
		AddSeries("threshold", limit)
	return line
}

// WriteTrajectoryHTML renders the trajectory chart, followed by one NIS
// chart per non-empty series, as a single HTML page.
func WriteTrajectoryHTML(w io.Writer, tr Trajectory, nis ...NISSeries) error {
	if tr.empty() {
		return ErrNoData
	}
	if tr.Title == "" {
		tr.Title = "Sensor fusion trajectory"
	}

	page := components.NewPage()
	page.SetPageTitle(tr.Title)
	page.AddCharts(trajectoryChart(tr))
	for _, s := range nis {
		if len(s.Samples) == 0 {
			continue
		}
		page.AddCharts(nisChart(s))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render trajectory page: %w", err)
	}
	return nil
}
