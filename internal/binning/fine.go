package binning

import (
	"fmt"
	"math"
)

// DefaultFineWidth is the default fine-bin width, in the original unit.
const DefaultFineWidth = 1.0

// maxFineBins bounds the fine histogram; the cascade is expected to have
// narrowed the range well below this.
const maxFineBins = 1 << 22

// BuildFineHistogram bins obs at a fixed width over
// [floor(min/width)·width, ceil(max/width)·width]. A range that collapses to
// a single point still gets one bin of the full width. All bins are
// returned, empty ones included, in index order.
func BuildFineHistogram(obs []Observation, width float64, metric Metric) ([]HistogramBin, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("fine bin width must be positive, got %v", width)
	}
	s, err := Summarize(obs, TransformLinear)
	if err != nil {
		return nil, err
	}

	start := math.Floor(s.Min/width) * width
	end := math.Ceil(s.Max/width) * width
	nf := math.Round((end - start) / width)
	if nf > maxFineBins {
		return nil, fmt.Errorf("fine histogram over [%v, %v] at width %v needs %.0f bins (max %d)", start, end, width, nf, maxFineBins)
	}
	n := max(int(nf), 1)

	bins := make([]HistogramBin, n)
	for k := range bins {
		l := start + float64(k)*width
		r := l + width
		bins[k] = HistogramBin{K: k, EdgeLeft: l, EdgeRight: r, Center: (l + r) / 2}
	}
	for _, o := range obs {
		if !TransformLinear.accepts(o.Value) || !finite(o.Weight) {
			continue
		}
		k := int(math.Floor((o.Value - start) / width))
		if k < 0 {
			k = 0
		}
		if k > n-1 {
			k = n - 1
		}
		bins[k].Frequency++
		bins[k].WeightSum += o.Weight
	}
	for k := range bins {
		bins[k].Metric = metric.of(bins[k].Frequency, bins[k].WeightSum)
	}
	return bins, nil
}
