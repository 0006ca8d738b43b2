package binning

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricBins(metrics ...float64) []HistogramBin {
	bins := make([]HistogramBin, len(metrics))
	for k, m := range metrics {
		bins[k] = HistogramBin{
			K:         k,
			EdgeLeft:  float64(k),
			EdgeRight: float64(k + 1),
			Frequency: int(m),
			Metric:    m,
		}
	}
	return bins
}

func TestRankBins_Interest(t *testing.T) {
	testCases := []struct {
		name      string
		metrics   []float64
		threshold float64
		want      []bool // by bin index
	}{
		// ranked 50, 30, 15, 5: prior shares 0, .5, .8, .95
		{"crossing_bin_is_kept", []float64{15, 50, 5, 30}, 0.9, []bool{true, true, false, true}},
		{"exact_threshold_stops", []float64{60, 30, 10}, 0.9, []bool{true, true, false}},
		{"single_bin_holds_all", []float64{0, 100, 0, 0}, 0.9, []bool{false, true, false, false}},
		{"ties_rank_by_index", []float64{10, 10, 10, 10}, 0.5, []bool{true, true, false, false}},
		{"threshold_one_keeps_populated", []float64{1, 2, 3}, 1, []bool{true, true, true}},
		{"zero_total_keeps_populated", []float64{0, 0}, 0.9, []bool{false, false}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bins := metricBins(tc.metrics...)
			r, err := RankBins(bins, tc.threshold)
			require.NoError(t, err)
			for k := range bins {
				assert.Equal(t, tc.want[k], r.OfInterest(k), "bin %d", k)
			}
		})
	}
}

func TestRankBins_CumulativeShare(t *testing.T) {
	obs := uniformObservations(4000, 9)
	table, s := buildTable(t, obs, TransformLog, DefaultMicroBins)
	bins, err := BuildHistogram(table, s, 200, MetricCount)
	require.NoError(t, err)

	r, err := RankBins(bins, 0.9)
	require.NoError(t, err)
	require.Len(t, r.Rows, len(bins))

	for i := 1; i < len(r.Rows); i++ {
		assert.GreaterOrEqual(t, r.Rows[i].Share, r.Rows[i-1].Share, "share decreased at rank %d", i+1)
		assert.LessOrEqual(t, r.Rows[i].Metric, r.Rows[i-1].Metric, "metric increased at rank %d", i+1)
		assert.Equal(t, i+1, r.Rows[i].Rank)
	}
	assert.InDelta(t, 1.0, r.Rows[len(r.Rows)-1].Share, 1e-12)
	assert.True(t, r.Rows[0].OfInterest)

	// of-interest rows form a prefix of the ranking
	seenOut := false
	for _, row := range r.Rows {
		if !row.OfInterest {
			seenOut = true
			continue
		}
		assert.False(t, seenOut, "rank %d kept after a dropped rank", row.Rank)
	}
}

func TestRankBins_Errors(t *testing.T) {
	_, err := RankBins(nil, 0.9)
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	for _, th := range []float64{0, -0.1, 1.5, math.NaN()} {
		_, err := RankBins(metricBins(1, 2), th)
		assert.Error(t, err, "threshold %v", th)
	}
}

func TestFilterObservations(t *testing.T) {
	bins := metricBins(5, 0, 7, 1)
	r, err := RankBins(bins, 0.9)
	require.NoError(t, err)
	require.True(t, r.OfInterest(0))
	require.False(t, r.OfInterest(1))
	require.True(t, r.OfInterest(2))
	require.False(t, r.OfInterest(3))

	obs := unitObservations(
		0,   // left edge of bin 0
		0.5, // bin 0
		1,   // shared edge of bins 0 and 1
		1.5, // bin 1, dropped
		2,   // shared edge of bins 1 and 2
		2.5, // bin 2
		3,   // shared edge of bins 2 and 3
		3.5, // bin 3, dropped
		4.5, // outside the histogram
		-1,  // outside the histogram
	)
	kept := FilterObservations(obs, bins, r)

	var values []float64
	for _, o := range kept {
		values = append(values, o.Value)
	}
	assert.Equal(t, []float64{0, 0.5, 1, 2, 2.5, 3}, values)
}

// A log pass over a 91/9 mixture of values near 10 and near 1000 keeps the
// cluster near 10 and drops the one near 1000.
func TestRunPass_TwoClusterMixture(t *testing.T) {
	obs := twoClusterObservations(1)
	p := DefaultPassConfig(TransformLog)

	res, kept, err := RunPass(context.Background(), obs, p, MetricCount, NewConstants(), 4)
	require.NoError(t, err)

	assert.Equal(t, len(obs), res.Summary.Count)
	assert.Equal(t, len(obs), sumFrequency(res.Histogram))
	assert.GreaterOrEqual(t, res.Best.M, p.MinBins)
	assert.LessOrEqual(t, res.Best.M, p.MaxBins)
	assert.NotEmpty(t, res.Scores)

	require.Len(t, kept, 9100)
	for _, o := range kept {
		assert.Less(t, o.Value, 100.0)
	}
	assert.Equal(t, 3, res.Ranking.Kept())
}
