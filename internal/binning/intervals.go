package binning

import "fmt"

// DefaultMediumThreshold is the cumulative share that bounds the MEDIUM row.
const DefaultMediumThreshold = 0.80

// SummarizeIntervals derives the LARGE, MEDIUM and SMALL rows from a fine
// histogram:
//
//   - LARGE spans every fine bin.
//   - MEDIUM runs from the first bin to the first bin k ≥ 1 at which the
//     cumulative metric of bins 1..k reaches mediumThreshold of the metric
//     held by bins 1..n-1. Bin 0 is left out of the share but is inside the
//     span and its totals.
//   - SMALL is the single bin with the largest metric, lowest index on ties.
//
// Shares are measured against pop, the unfiltered input.
func SummarizeIntervals(fine []HistogramBin, pop Population, mediumThreshold float64) ([3]Interval, error) {
	var out [3]Interval
	if len(fine) == 0 {
		return out, &EmptyDatasetError{Stage: "interval summary"}
	}
	if !(mediumThreshold > 0 && mediumThreshold <= 1) {
		return out, fmt.Errorf("medium threshold must be in (0, 1], got %v", mediumThreshold)
	}

	out[0] = spanInterval(IntervalLarge, fine, 0, len(fine)-1, pop)
	out[1] = spanInterval(IntervalMedium, fine, 0, mediumEnd(fine, mediumThreshold), pop)

	small := 0
	for k, b := range fine {
		if b.Metric > fine[small].Metric {
			small = k
		}
	}
	out[2] = spanInterval(IntervalSmall, fine, small, small, pop)
	return out, nil
}

func mediumEnd(fine []HistogramBin, threshold float64) int {
	var rest float64
	for _, b := range fine[1:] {
		rest += b.Metric
	}
	if rest <= 0 {
		return 0
	}
	var cum float64
	for k := 1; k < len(fine); k++ {
		cum += fine[k].Metric
		if cum/rest >= threshold {
			return k
		}
	}
	return len(fine) - 1
}

func spanInterval(kind IntervalKind, fine []HistogramBin, first, last int, pop Population) Interval {
	iv := Interval{
		Kind:  kind,
		Start: fine[first].EdgeLeft,
		End:   fine[last].EdgeRight,
	}
	for _, b := range fine[first : last+1] {
		iv.Frequency += b.Frequency
		iv.MetricTotal += b.Metric
	}
	iv.Width = iv.End - iv.Start
	if iv.Width > 0 {
		iv.MetricDensity = iv.MetricTotal / iv.Width
		iv.FrequencyDensity = float64(iv.Frequency) / iv.Width
	}
	if pop.Metric != 0 {
		iv.PctMetricOfTotal = 100 * iv.MetricTotal / pop.Metric
	}
	if pop.Count > 0 {
		iv.PctFrequencyOfTotal = 100 * float64(iv.Frequency) / float64(pop.Count)
	}
	return iv
}
