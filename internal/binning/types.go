// Package binning selects evidence-maximising histograms for weighted 1-D
// observations and extracts the contiguous value intervals that concentrate
// most of a target metric.
//
// The pipeline pre-aggregates observations into micro-bins, scores a
// geometric grid of candidate bin counts with Knuth's Bayesian evidence,
// keeps the bins holding the top share of the metric, and repeats the pass in
// linear space over the survivors. The doubly filtered subset is re-binned at
// a fixed fine width and scanned for runs of non-empty bins.
package binning

import (
	"fmt"
	"math"
)

// Observation is a single weighted value, e.g. a payment amount weighted by
// its cost.
type Observation struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Transform is the space a Knuth pass bins in.
type Transform int

const (
	TransformLinear Transform = iota
	TransformLog
)

func (t Transform) String() string {
	switch t {
	case TransformLinear:
		return "linear"
	case TransformLog:
		return "log"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

// ParseTransform maps "linear"/"identity" and "log" onto a Transform.
func ParseTransform(s string) (Transform, error) {
	switch s {
	case "linear", "identity":
		return TransformLinear, nil
	case "log":
		return TransformLog, nil
	default:
		return 0, fmt.Errorf("unknown transform %q", s)
	}
}

func (t Transform) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Transform) UnmarshalText(b []byte) error {
	v, err := ParseTransform(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Forward maps a value into transform space.
func (t Transform) Forward(v float64) float64 {
	if t == TransformLog {
		return math.Log(v)
	}
	return v
}

// Inverse maps a transform-space value back to the original unit.
func (t Transform) Inverse(v float64) float64 {
	if t == TransformLog {
		return math.Exp(v)
	}
	return v
}

// accepts reports whether v can be binned under t.
func (t Transform) accepts(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return t != TransformLog || v > 0
}

// Metric selects the quantity that bins are ranked and summarised by.
type Metric int

const (
	MetricWeight Metric = iota
	MetricCount
)

func (m Metric) String() string {
	switch m {
	case MetricWeight:
		return "weight"
	case MetricCount:
		return "count"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric maps "weight" and "count" onto a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "weight", "":
		return MetricWeight, nil
	case "count":
		return MetricCount, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// of returns the metric contribution of a bin holding n observations with
// summed weight w.
func (m Metric) of(n int, w float64) float64 {
	if m == MetricCount {
		return float64(n)
	}
	return w
}

// MicroBin is one populated fixed-width pre-aggregation bin.
type MicroBin struct {
	Index     int     `json:"index"`
	Count     int     `json:"count"`
	WeightSum float64 `json:"weight_sum"`
}

// MacroBin is the re-aggregation of micro-bins under a candidate bin count M.
type MacroBin struct {
	M         int     `json:"m"`
	K         int     `json:"k"`
	Count     int     `json:"n"`
	WeightSum float64 `json:"ecr"`
}

// HistogramBin is one bin of a materialised histogram, in the original unit.
type HistogramBin struct {
	K         int     `json:"k"`
	EdgeLeft  float64 `json:"edge_left"`
	EdgeRight float64 `json:"edge_right"`
	Center    float64 `json:"center"`
	Frequency int     `json:"frequency"`
	WeightSum float64 `json:"weight_sum"`
	Metric    float64 `json:"metric"`
}

// Width returns the bin width in the original unit.
func (b HistogramBin) Width() float64 {
	return b.EdgeRight - b.EdgeLeft
}

// IntervalKind tags the three summary rows.
type IntervalKind string

const (
	IntervalLarge  IntervalKind = "LARGE"
	IntervalMedium IntervalKind = "MEDIUM"
	IntervalSmall  IntervalKind = "SMALL"
)

// Interval is one row of the output table. Percentages are relative to the
// whole input population, before any filtering, and expressed in percent.
type Interval struct {
	Kind                IntervalKind `json:"interval_type"`
	Start               float64      `json:"range_start"`
	End                 float64      `json:"range_end"`
	Width               float64      `json:"width"`
	Frequency           int          `json:"frequency"`
	MetricTotal         float64      `json:"metric_total"`
	MetricDensity       float64      `json:"metric_density"`
	PctMetricOfTotal    float64      `json:"pct_metric_of_total"`
	PctFrequencyOfTotal float64      `json:"pct_frequency_of_total"`
	FrequencyDensity    float64      `json:"frequency_density"`
}

// Population holds the totals of the unfiltered input that interval shares
// are measured against.
type Population struct {
	Count  int     `json:"count"`
	Metric float64 `json:"metric"`
}
