package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/siamtrack/internal/benchmark"
)

// WriteHTML renders one page with a per-run line chart and, when any run
// has ground truth, a bar chart of mean IoU per run.
func WriteHTML(w io.Writer, sums []*benchmark.Summary) error {
	page := components.NewPage()
	page.PageTitle = "Tracking benchmark"

	if bar := meanIoUChart(sums); bar != nil {
		page.AddCharts(bar)
	}
	for _, s := range sums {
		page.AddCharts(runChart(s))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func meanIoUChart(sums []*benchmark.Summary) *charts.Bar {
	var names []string
	var data []opts.BarData
	for _, s := range sums {
		if !s.HasGroundTruth {
			continue
		}
		names = append(names, s.Name)
		data = append(data, opts.BarData{Value: s.MeanIoU})
	}
	if len(names) == 0 {
		return nil
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean IoU", Subtitle: fmt.Sprintf("%d sequences", len(names))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis(names).
		AddSeries("mean IoU", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func runChart(s *benchmark.Summary) *charts.Line {
	frames := make([]int, len(s.Frames))
	conf := make([]opts.LineData, len(s.Frames))
	iou := make([]opts.LineData, len(s.Frames))
	for i, f := range s.Frames {
		frames[i] = f.Index
		conf[i] = opts.LineData{Value: f.Confidence}
		iou[i] = opts.LineData{Value: f.IoU}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Name, Subtitle: s.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	line.SetXAxis(frames).AddSeries("confidence", conf)
	if s.HasGroundTruth {
		line.AddSeries("IoU", iou)
	}
	return line
}
