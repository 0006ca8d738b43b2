package binning

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StatSummary describes the valid part of an observation set.
type StatSummary struct {
	Count       int     `json:"count"`
	Skipped     int     `json:"skipped"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	TotalWeight float64 `json:"total_weight"`
	MeanValue   float64 `json:"mean_value"`
}

// Constant reports whether every valid observation has the same value.
func (s StatSummary) Constant() bool {
	return s.Min == s.Max
}

// Summarize computes count, range and weight totals of the observations t
// can bin. Rows with a non-finite value or weight, or with a non-positive
// value under the log transform, are counted as skipped.
func Summarize(obs []Observation, t Transform) (StatSummary, error) {
	values, weights, skipped := validColumns(obs, t)
	if len(values) == 0 {
		return StatSummary{Skipped: skipped}, &EmptyDatasetError{Stage: "summary", Skipped: skipped}
	}

	s := StatSummary{
		Count:       len(values),
		Skipped:     skipped,
		Min:         floats.Min(values),
		Max:         floats.Max(values),
		TotalWeight: floats.Sum(weights),
	}
	if s.TotalWeight > 0 {
		s.MeanValue = stat.Mean(values, weights)
	} else {
		s.MeanValue = stat.Mean(values, nil)
	}
	return s, nil
}

func validColumns(obs []Observation, t Transform) (values, weights []float64, skipped int) {
	values = make([]float64, 0, len(obs))
	weights = make([]float64, 0, len(obs))
	for _, o := range obs {
		if !t.accepts(o.Value) || !finite(o.Weight) {
			skipped++
			continue
		}
		values = append(values, o.Value)
		weights = append(weights, o.Weight)
	}
	return values, weights, skipped
}
