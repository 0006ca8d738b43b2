package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/amount.report/internal/binning"
)

// NewHistogramPlot draws bins as a gonum histogram with the metric on the Y
// axis. Bins keep their own, possibly uneven, edges.
func NewHistogramPlot(bins []binning.HistogramBin, title string) (*plot.Plot, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("no bins to plot")
	}

	h := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, len(bins)),
		FillColor: color.RGBA{R: 0x26, G: 0x82, B: 0x8e, A: 0xff},
	}
	h.LineStyle = plotter.DefaultLineStyle
	h.LineStyle.Width = vg.Points(0.5)
	for i, b := range bins {
		left, right := b.EdgeLeft, b.EdgeRight
		if right <= left {
			// a degenerate bin still needs visible width
			right = left + 1
		}
		h.Bins[i] = plotter.HistogramBin{Min: left, Max: right, Weight: b.Metric}
	}
	h.Width = h.Bins[len(h.Bins)-1].Max - h.Bins[0].Min

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Metric"
	p.Add(h)
	return p, nil
}

// SavePNG writes the histogram of bins to path. The image format follows the
// file extension, so .svg and .pdf work too.
func SavePNG(path string, bins []binning.HistogramBin, title string) error {
	p, err := NewHistogramPlot(bins, title)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
