package bench

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders per-phase throughput curves as a standalone HTML page.
// Each phase contributes one line over its checkpoint windows.
func WriteChart(result *RunResult, writer io.Writer) error {
	line := buildThroughputChart(result)

	err := line.Render(writer)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func buildThroughputChart(result *RunResult) *charts.Line {
	const fullZoomPct = 100

	maxCheckpoints := 0
	for _, phase := range result.Phases {
		maxCheckpoints = max(maxCheckpoints, len(phase.Checkpoints))
	}

	line := charts.NewLine()

	if maxCheckpoints == 0 {
		line.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    "slabbench throughput",
				Subtitle: "No data",
			}),
		)
		line.SetXAxis([]string{})

		return line
	}

	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "slabbench throughput",
			Subtitle: fmt.Sprintf("workload %s, seed %d, policy %s",
				result.Workload.Name, result.Workload.Seed, result.Workload.Policy),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "5px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Checkpoint window",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Ops per second",
		}),
	)

	xLabels := make([]string, maxCheckpoints)
	for i := range xLabels {
		xLabels[i] = strconv.Itoa(i + 1)
	}

	line.SetXAxis(xLabels)

	for i, phase := range result.Phases {
		data := make([]opts.LineData, len(phase.Checkpoints))
		for j, checkpoint := range phase.Checkpoints {
			data[j] = opts.LineData{Value: checkpoint.OpsPerSecond}
		}

		line.AddSeries(
			fmt.Sprintf("phase %d (%s)", i+1, phase.Kind),
			data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)
	}

	return line
}
