// Package report renders benchmark summaries as PNG plots and an HTML page.
package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/siamtrack/internal/benchmark"
)

var (
	iouColor        = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	confidenceColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// SaveOverlapPlot writes a PNG (or any format gonum/plot infers from the
// extension) with per-frame confidence and, for annotated runs, IoU.
func SaveOverlapPlot(sum *benchmark.Summary, path string) error {
	if sum == nil || len(sum.Frames) == 0 {
		return errors.New("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - tracking quality", sum.Name)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Value"
	p.Y.Min = 0
	p.Y.Max = 1

	confPts := make(plotter.XYs, 0, len(sum.Frames))
	iouPts := make(plotter.XYs, 0, len(sum.Frames))
	for _, f := range sum.Frames {
		confPts = append(confPts, plotter.XY{X: float64(f.Index), Y: f.Confidence})
		if f.GroundTruth != nil {
			iouPts = append(iouPts, plotter.XY{X: float64(f.Index), Y: f.IoU})
		}
	}

	confLine, err := plotter.NewLine(confPts)
	if err != nil {
		return fmt.Errorf("confidence line: %w", err)
	}
	confLine.Color = confidenceColor
	confLine.Width = vg.Points(1)
	p.Add(confLine)
	p.Legend.Add("confidence", confLine)

	if len(iouPts) > 0 {
		iouLine, err := plotter.NewLine(iouPts)
		if err != nil {
			return fmt.Errorf("iou line: %w", err)
		}
		iouLine.Color = iouColor
		iouLine.Width = vg.Points(1)
		p.Add(iouLine)
		p.Legend.Add("IoU", iouLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save overlap plot: %w", err)
	}
	return nil
}
