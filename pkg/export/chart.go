package export

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/harvestplan/core/query"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// DefaultChartStep is the sampling period of the chart export in seconds.
const DefaultChartStep = 30.0

// WriteChart renders an HTML page with the field progress, silo inventory and
// bunker mass of every entity, sampled every step seconds.
func WriteChart(w io.Writer, res *timeline.Result, step float64) error {
	if step <= 0 {
		step = DefaultChartStep
	}
	engine, err := query.New(res)
	if err != nil {
		return err
	}
	frames, err := engine.Frames(step)
	if err != nil {
		return err
	}
	xAxis := make([]string, len(frames))
	for i, f := range frames {
		xAxis[i] = strconv.FormatFloat(f.Timestamp, 'f', 0, 64)
	}
	names := newNamer(res.Campaign)

	fields := newLine("Field progress", "Harvested (%)", xAxis)
	for i, id := range res.FieldIDs() {
		data := make([]opts.LineData, len(frames))
		for j, f := range frames {
			data[j] = opts.LineData{Value: round3(f.Fields[i].Percentage)}
		}
		fields.AddSeries(fmt.Sprintf("%s (%d)", names.field(id), id), data)
	}

	silos := newLine("Silo inventory", "Mass (kg)", xAxis)
	for i, id := range res.SiloIDs() {
		data := make([]opts.LineData, len(frames))
		for j, f := range frames {
			data[j] = opts.LineData{Value: round3(f.Silos[i].Mass)}
		}
		silos.AddSeries(fmt.Sprintf("%s (%d)", names.silo(id), id), data)
	}

	bunkers := newLine("Bunker mass", "Mass (kg)", xAxis)
	for i, id := range res.MachineIDs() {
		data := make([]opts.LineData, len(frames))
		for j, f := range frames {
			data[j] = opts.LineData{Value: round3(f.Machines[i].Bunker)}
		}
		bunkers.AddSeries(fmt.Sprintf("%s (%d)", names.machine(id), id), data)
	}

	page := components.NewPage()
	page.PageTitle = "Run " + res.RunID
	page.AddCharts(fields, silos, bunkers)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func newLine(title, yName string, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	line.SetXAxis(xAxis)
	return line
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
