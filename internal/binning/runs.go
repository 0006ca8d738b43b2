package binning

import (
	"errors"
	"sort"
)

// DefaultHotspots is the number of individual fine bins reported as
// point hotspots.
const DefaultHotspots = 3

// Run is a maximal sequence of adjacent active fine bins.
type Run struct {
	Group      int     `json:"group"`
	FirstIndex int     `json:"first_index"`
	LastIndex  int     `json:"last_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Frequency  int     `json:"frequency"`
	Metric     float64 `json:"metric"`
	Width      float64 `json:"width"`
	Density    float64 `json:"density"`
}

// RunDetection is the result of scanning a fine histogram for runs.
type RunDetection struct {
	// Groups holds, per fine bin, the number of run starts seen up to and
	// including that bin. Inactive bins carry the id of the preceding run.
	Groups  []int `json:"groups"`
	Runs    []Run `json:"runs"`
	Primary Run   `json:"primary"`
}

// active reports whether a fine bin takes part in a run.
func active(b HistogramBin) bool {
	return b.Metric > 0
}

// DetectRuns scans fine bins in index order. A run starts at every active
// bin whose predecessor is inactive or missing. The primary run is the one
// with the largest total metric; ties go to the run that starts first.
func DetectRuns(fine []HistogramBin) (RunDetection, error) {
	d := RunDetection{Groups: make([]int, len(fine))}
	group := 0
	for i, b := range fine {
		if active(b) && (i == 0 || !active(fine[i-1])) {
			group++
			d.Runs = append(d.Runs, Run{Group: group, FirstIndex: i, Start: b.EdgeLeft})
		}
		d.Groups[i] = group
		if !active(b) {
			continue
		}
		r := &d.Runs[len(d.Runs)-1]
		r.LastIndex = i
		r.End = b.EdgeRight
		r.Frequency += b.Frequency
		r.Metric += b.Metric
	}
	if len(d.Runs) == 0 {
		return d, errors.New("run detection: no fine bin carries a positive metric")
	}

	best := 0
	for i := range d.Runs {
		r := &d.Runs[i]
		r.Width = r.End - r.Start
		if r.Width > 0 {
			r.Density = r.Metric / r.Width
		}
		if r.Metric > d.Runs[best].Metric {
			best = i
		}
	}
	d.Primary = d.Runs[best]
	return d, nil
}

// TopBins returns up to k active fine bins with the largest metric, highest
// first; equal metrics keep index order.
func TopBins(fine []HistogramBin, k int) []HistogramBin {
	if k < 1 {
		return nil
	}
	var out []HistogramBin
	for _, b := range fine {
		if active(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metric > out[j].Metric })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
