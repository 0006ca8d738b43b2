package binning

import (
	"fmt"
	"math"
)

// BuildHistogram materialises m equal-width transform-space bins over the
// summary's range. Edges are mapped back to the original unit; the outer two
// edges are the exact observed min and max. Empty bins are kept so the
// result tiles [min, max] without gaps. A constant dataset yields a single
// zero-width bin regardless of m.
func BuildHistogram(table *MicroTable, s StatSummary, m int, metric Metric) ([]HistogramBin, error) {
	if s.Count == 0 || table.N == 0 {
		return nil, &EmptyDatasetError{Stage: "histogram", Skipped: s.Skipped}
	}
	if s.Constant() || table.Width == 0 {
		var w float64
		for _, x := range table.Weights {
			w += x
		}
		return []HistogramBin{{
			EdgeLeft:  s.Min,
			EdgeRight: s.Max,
			Center:    s.Min,
			Frequency: table.N,
			WeightSum: w,
			Metric:    metric.of(table.N, w),
		}}, nil
	}
	if m < 1 {
		return nil, fmt.Errorf("histogram needs at least one bin, got %d", m)
	}

	step := (table.TMax - table.TMin) / float64(m)
	edges := make([]float64, m+1)
	for k := range edges {
		edges[k] = table.Transform.Inverse(table.TMin + float64(k)*step)
	}
	edges[0], edges[m] = s.Min, s.Max

	bins := make([]HistogramBin, m)
	for k := range bins {
		l, r := edges[k], edges[k+1]
		c := (l + r) / 2
		if table.Transform == TransformLog {
			c = math.Sqrt(l * r)
		}
		bins[k] = HistogramBin{K: k, EdgeLeft: l, EdgeRight: r, Center: c}
	}
	for _, mb := range Rebin(table, m) {
		b := &bins[mb.K]
		b.Frequency = mb.Count
		b.WeightSum = mb.WeightSum
	}
	for k := range bins {
		bins[k].Metric = metric.of(bins[k].Frequency, bins[k].WeightSum)
	}
	return bins, nil
}
