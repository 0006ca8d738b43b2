package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/amount.report/internal/binning"
)

// DefaultAssetsHost serves the echarts JavaScript for rendered pages.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// HTMLOptions tunes RenderHTML and RenderFine.
type HTMLOptions struct {
	Title      string
	AssetsHost string
}

func (o HTMLOptions) assetsHost() string {
	if o.AssetsHost == "" {
		return DefaultAssetsHost
	}
	return o.AssetsHost
}

func (o HTMLOptions) title() string {
	if o.Title == "" {
		return "Strategic intervals"
	}
	return o.Title
}

// RenderHTML writes a page with the fine histogram, both pass histograms and
// the evidence curve of each pass.
func RenderHTML(w io.Writer, res *binning.Result, o HTMLOptions) error {
	page := components.NewPage()
	page.PageTitle = o.title()
	page.SetAssetsHost(o.assetsHost())

	page.AddCharts(fineChart(res.Fine, res.Intervals[:], o))
	for i, pass := range res.Passes {
		if len(pass.Histogram) == 0 {
			continue
		}
		page.AddCharts(passChart(i+1, pass, o))
		if len(pass.Scores) > 0 {
			page.AddCharts(evidenceChart(i+1, pass, o))
		}
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// RenderFine writes a page holding only the fine histogram, as kept for an
// archived run.
func RenderFine(w io.Writer, fine []binning.HistogramBin, intervals []binning.Interval, o HTMLOptions) error {
	page := components.NewPage()
	page.PageTitle = o.title()
	page.SetAssetsHost(o.assetsHost())
	page.AddCharts(fineChart(fine, intervals, o))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func binLabel(b binning.HistogramBin) string {
	return strconv.FormatFloat(b.EdgeLeft, 'g', 6, 64)
}

func fineChart(fine []binning.HistogramBin, intervals []binning.Interval, o HTMLOptions) *charts.Bar {
	x := make([]string, len(fine))
	y := make([]opts.BarData, len(fine))
	for i, b := range fine {
		x[i] = binLabel(b)
		y[i] = opts.BarData{Value: b.Metric}
	}

	subtitle := ""
	for _, iv := range intervals {
		subtitle += fmt.Sprintf("%s [%g, %g] %.1f%%   ", iv.Kind, iv.Start, iv.End, iv.PctMetricOfTotal)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: o.assetsHost()}),
		charts.WithTitleOpts(opts.Title{Title: "Fine histogram of the core", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "value", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "metric"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(x).AddSeries("metric", y)
	return bar
}

func passChart(n int, pass binning.PassResult, o HTMLOptions) *charts.Bar {
	x := make([]string, len(pass.Histogram))
	kept := make([]opts.BarData, len(pass.Histogram))
	dropped := make([]opts.BarData, len(pass.Histogram))
	for i, b := range pass.Histogram {
		x[i] = binLabel(b)
		if pass.Ranking.OfInterest(b.K) {
			kept[i] = opts.BarData{Value: b.Metric}
			dropped[i] = opts.BarData{Value: 0}
		} else {
			kept[i] = opts.BarData{Value: 0}
			dropped[i] = opts.BarData{Value: b.Metric}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: o.assetsHost()}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Pass %d (%s): M*=%d", n, pass.Transform, pass.Best.M),
			Subtitle: fmt.Sprintf("n=%d skipped=%d kept %d/%d bins, %d observations",
				pass.Summary.Count, pass.Summary.Skipped, pass.Ranking.Kept(), len(pass.Histogram), pass.Retained),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(x).
		AddSeries("of interest", kept, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#26828e"})).
		AddSeries("dropped", dropped, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "metric"}))
	return bar
}

func evidenceChart(n int, pass binning.PassResult, o HTMLOptions) *charts.Line {
	x := make([]string, len(pass.Scores))
	y := make([]opts.LineData, len(pass.Scores))
	for i, s := range pass.Scores {
		x[i] = strconv.Itoa(s.M)
		y[i] = opts.LineData{Value: s.Evidence}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: o.assetsHost()}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Pass %d evidence F(M)", n), Subtitle: fmt.Sprintf("max at M=%d", pass.Best.M)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "M", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "log evidence"}),
	)
	line.SetXAxis(x).AddSeries("F(M)", y)
	return line
}
