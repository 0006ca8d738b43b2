package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amount.report/internal/binning"
)

func unitObs(values ...float64) []binning.Observation {
	obs := make([]binning.Observation, len(values))
	for i, v := range values {
		obs[i] = binning.Observation{Value: v, Weight: 1}
	}
	return obs
}

func TestObservations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := []binning.Observation{{Value: 12.5, Weight: 3}, {Value: 7, Weight: 1}, {Value: 99.99, Weight: 0.5}}
	require.NoError(t, db.InsertObservations(ctx, "payments-2024", a))
	require.NoError(t, db.InsertObservations(ctx, "refunds", unitObs(1, 2)))

	got, err := db.Observations(ctx, "payments-2024")
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}

	none, err := db.Observations(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	sources, err := db.Sources(ctx)
	require.NoError(t, err)
	want := []Source{
		{Name: "payments-2024", Count: 3, TotalWeight: 4.5},
		{Name: "refunds", Count: 2, TotalWeight: 2},
	}
	if diff := cmp.Diff(want, sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	n, err := db.DeleteSource(ctx, "refunds")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Error(t, db.InsertObservations(ctx, "", unitObs(1)))
}

func engineResult(t *testing.T) (binning.Config, *binning.Result) {
	t.Helper()
	cfg := binning.DefaultConfig()
	cfg.Metric = binning.MetricCount
	e, err := binning.NewEngine(cfg)
	require.NoError(t, err)

	var obs []binning.Observation
	for i := 0; i < 400; i++ {
		obs = append(obs, binning.Observation{Value: float64(10 + i%7), Weight: 1})
	}
	obs = append(obs, unitObs(5000, 9000)...)
	res, err := e.Run(context.Background(), obs)
	require.NoError(t, err)
	return cfg, res
}

func TestSaveAndGetRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cfg, res := engineResult(t)

	run, err := NewIntervalRun("payments", cfg, res, 1500*time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)
	require.NoError(t, db.SaveRun(ctx, run))

	got, err := db.GetRun(ctx, run.RunID)
	require.NoError(t, err)

	assert.Equal(t, "payments", got.Source)
	assert.Equal(t, "count", got.Metric)
	assert.Equal(t, res.Population, got.Population)
	assert.Equal(t, res.Passes[0].Best.M, got.LogBestM)
	assert.Equal(t, res.Passes[1].Retained, got.LinearRetained)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, run.CreatedAt.Unix(), got.CreatedAt.Unix())

	if diff := cmp.Diff(res.Intervals[:], got.Intervals); diff != "" {
		t.Errorf("intervals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res.Fine, got.FineBins); diff != "" {
		t.Errorf("fine bins mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, res.Runs.Groups, got.Groups)

	var stored binning.Config
	require.NoError(t, json.Unmarshal(got.Config, &stored))
	assert.Equal(t, cfg, stored)
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetRun(context.Background(), "no-such-run")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(db.DeleteRun(context.Background(), "no-such-run"), ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cfg, res := engineResult(t)

	base := time.Unix(1700000000, 0)
	for i, source := range []string{"a", "b", "a"} {
		run, err := NewIntervalRun(source, cfg, res, time.Second)
		require.NoError(t, err)
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.SaveRun(ctx, run))
	}

	all, err := db.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Hour).Unix(), all[0].CreatedAt.Unix())
	assert.Len(t, all[0].Intervals, 3)
	assert.Empty(t, all[0].FineBins)

	onlyA, err := db.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := db.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cfg, res := engineResult(t)

	run, err := NewIntervalRun("a", cfg, res, 0)
	require.NoError(t, err)
	require.NoError(t, db.SaveRun(ctx, run))
	require.NoError(t, db.DeleteRun(ctx, run.RunID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM fine_bins WHERE run_id = ?`, run.RunID).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM interval_results WHERE run_id = ?`, run.RunID).Scan(&n))
	assert.Zero(t, n)
}

func TestSaveRun_RejectsMismatchedGroups(t *testing.T) {
	db := newTestDB(t)
	run := &IntervalRun{
		Source:   "a",
		Metric:   "weight",
		FineBins: []binning.HistogramBin{{EdgeLeft: 0, EdgeRight: 1}},
		Groups:   []int{1, 2},
	}
	assert.Error(t, db.SaveRun(context.Background(), run))
}
