package binning

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the default cumulative share a Knuth pass keeps.
const DefaultThreshold = 0.90

// RankedBin is one row of the Pareto table: a histogram bin with its rank by
// metric and the running cumulative share up to and including it.
type RankedBin struct {
	Rank       int     `json:"rank"`
	K          int     `json:"k"`
	Metric     float64 `json:"metric"`
	Cumulative float64 `json:"cumulative"`
	Share      float64 `json:"share"`
	OfInterest bool    `json:"of_interest"`
}

// Ranking is the Pareto table of a histogram.
type Ranking struct {
	Threshold float64     `json:"threshold"`
	Total     float64     `json:"total"`
	Rows      []RankedBin `json:"rows"`
	interest  []bool
}

// OfInterest reports whether histogram bin k was kept.
func (r Ranking) OfInterest(k int) bool {
	return k >= 0 && k < len(r.interest) && r.interest[k]
}

// Kept returns the number of bins marked of interest.
func (r Ranking) Kept() int {
	n := 0
	for _, in := range r.interest {
		if in {
			n++
		}
	}
	return n
}

// RankBins orders bins by metric, highest first (ties by bin index), and
// runs a prefix sum over that order. A bin is of interest while the share
// accumulated by the bins ranked above it is still below threshold, so the
// bin that crosses the threshold is the last one kept. The top-ranked bin is
// always kept.
//
// When the metric total is not positive no share can be measured; every
// populated bin is then kept.
func RankBins(bins []HistogramBin, threshold float64) (Ranking, error) {
	if len(bins) == 0 {
		return Ranking{}, &EmptyDatasetError{Stage: "pareto"}
	}
	if !(threshold > 0 && threshold <= 1) {
		return Ranking{}, fmt.Errorf("cumulative threshold must be in (0, 1], got %v", threshold)
	}

	metrics := make([]float64, len(bins))
	for i, b := range bins {
		metrics[i] = b.Metric
	}
	total := floats.Sum(metrics)

	order := make([]int, len(bins))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bins[order[a]].Metric > bins[order[b]].Metric
	})

	r := Ranking{
		Threshold: threshold,
		Total:     total,
		Rows:      make([]RankedBin, len(bins)),
		interest:  make([]bool, len(bins)),
	}
	var cum, prevShare float64
	for rank, i := range order {
		b := bins[i]
		cum += b.Metric
		row := RankedBin{Rank: rank + 1, K: b.K, Metric: b.Metric, Cumulative: cum}
		if total > 0 {
			row.Share = cum / total
			row.OfInterest = prevShare < threshold
			prevShare = row.Share
		} else {
			row.OfInterest = b.Frequency > 0
		}
		r.Rows[rank] = row
		r.interest[i] = row.OfInterest
	}
	return r, nil
}

// FilterObservations returns the observations whose value lies within the
// closed edges of any bin of interest. A value on the shared edge of two
// bins is kept if either bin is.
func FilterObservations(obs []Observation, bins []HistogramBin, r Ranking) []Observation {
	out := make([]Observation, 0, len(obs))
	if len(bins) == 0 {
		return out
	}
	first, last := bins[0].EdgeLeft, bins[len(bins)-1].EdgeRight
	for _, o := range obs {
		v := o.Value
		if !(v >= first && v <= last) || !finite(o.Weight) {
			continue
		}
		i := sort.Search(len(bins), func(i int) bool { return bins[i].EdgeRight >= v })
		if i == len(bins) {
			continue
		}
		keep := r.OfInterest(i)
		if !keep && v == bins[i].EdgeRight && i+1 < len(bins) {
			keep = r.OfInterest(i + 1)
		}
		if keep {
			out = append(out, o)
		}
	}
	return out
}
