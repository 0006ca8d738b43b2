package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/amount.report/internal/binning"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("interval run not found")

// IntervalRun is an archived engine run: the summary table, the fine
// histogram it was derived from, and enough metadata to reproduce it.
type IntervalRun struct {
	RunID          string                 `json:"run_id"`
	Source         string                 `json:"source"`
	Metric         string                 `json:"metric"`
	Config         json.RawMessage        `json:"config,omitempty"`
	Population     binning.Population     `json:"population"`
	LogBestM       int                    `json:"log_best_m"`
	LinearBestM    int                    `json:"linear_best_m"`
	LogRetained    int                    `json:"log_retained"`
	LinearRetained int                    `json:"linear_retained"`
	Duration       time.Duration          `json:"duration_ns"`
	CreatedAt      time.Time              `json:"created_at"`
	Intervals      []binning.Interval     `json:"intervals"`
	FineBins       []binning.HistogramBin `json:"fine_bins,omitempty"`
	Groups         []int                  `json:"groups,omitempty"`
}

// NewIntervalRun builds an archive record for res under a fresh run ID.
func NewIntervalRun(source string, cfg binning.Config, res *binning.Result, took time.Duration) (*IntervalRun, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	return &IntervalRun{
		RunID:          uuid.NewString(),
		Source:         source,
		Metric:         cfg.Metric.String(),
		Config:         cfgJSON,
		Population:     res.Population,
		LogBestM:       res.Passes[0].Best.M,
		LinearBestM:    res.Passes[1].Best.M,
		LogRetained:    res.Passes[0].Retained,
		LinearRetained: res.Passes[1].Retained,
		Duration:       took,
		CreatedAt:      time.Now(),
		Intervals:      res.Intervals[:],
		FineBins:       res.Fine,
		Groups:         res.Runs.Groups,
	}, nil
}

// SaveRun stores run with its interval rows and fine bins in one
// transaction. An empty RunID is filled in.
func (db *DB) SaveRun(ctx context.Context, run *IntervalRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if len(run.Groups) != 0 && len(run.Groups) != len(run.FineBins) {
		return fmt.Errorf("run %s: %d run groups for %d fine bins", run.RunID, len(run.Groups), len(run.FineBins))
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interval_runs (
			run_id, source, metric, config_json, population_count, population_metric,
			log_best_m, linear_best_m, log_retained, linear_retained, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Metric, string(run.Config), run.Population.Count, run.Population.Metric,
		run.LogBestM, run.LinearBestM, run.LogRetained, run.LinearRetained,
		run.Duration.Milliseconds(), run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interval run: %w", err)
	}

	for _, iv := range run.Intervals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interval_results (
				run_id, interval_type, range_start, range_end, width, frequency, metric_total,
				metric_density, pct_metric_of_total, pct_frequency_of_total, frequency_density
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, string(iv.Kind), iv.Start, iv.End, iv.Width, iv.Frequency, iv.MetricTotal,
			iv.MetricDensity, iv.PctMetricOfTotal, iv.PctFrequencyOfTotal, iv.FrequencyDensity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s interval: %w", iv.Kind, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fine_bins (run_id, bin_index, edge_left, edge_right, frequency, weight_sum, metric, run_group)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare fine bin insert: %w", err)
	}
	defer stmt.Close()
	for i, b := range run.FineBins {
		group := 0
		if len(run.Groups) > 0 {
			group = run.Groups[i]
		}
		if _, err := stmt.ExecContext(ctx, run.RunID, b.K, b.EdgeLeft, b.EdgeRight, b.Frequency, b.WeightSum, b.Metric, group); err != nil {
			return fmt.Errorf("failed to insert fine bin %d: %w", b.K, err)
		}
	}

	return tx.Commit()
}

const runColumns = `
	run_id, source, metric, COALESCE(config_json, ''), population_count, population_metric,
	log_best_m, linear_best_m, log_retained, linear_retained, duration_ms, created_at`

func scanRun(row interface{ Scan(...any) error }) (*IntervalRun, error) {
	var (
		run        IntervalRun
		cfg        string
		durationMs int64
		createdAt  int64
	)
	err := row.Scan(
		&run.RunID, &run.Source, &run.Metric, &cfg, &run.Population.Count, &run.Population.Metric,
		&run.LogBestM, &run.LinearBestM, &run.LogRetained, &run.LinearRetained, &durationMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if cfg != "" {
		run.Config = json.RawMessage(cfg)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.CreatedAt = time.Unix(createdAt, 0)
	return &run, nil
}

// GetRun loads a run with its interval rows and fine bins.
func (db *DB) GetRun(ctx context.Context, id string) (*IntervalRun, error) {
	run, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM interval_runs WHERE run_id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.Intervals, err = db.runIntervals(ctx, id); err != nil {
		return nil, err
	}
	if run.FineBins, run.Groups, err = db.runFineBins(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, with their interval
// rows but without fine bins. An empty source lists every source.
func (db *DB) ListRuns(ctx context.Context, source string, limit int) ([]IntervalRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM interval_runs
		WHERE (? = '' OR source = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []IntervalRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Intervals, err = db.runIntervals(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// DeleteRun removes a run; its interval rows and fine bins cascade.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM interval_runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (db *DB) runIntervals(ctx context.Context, id string) ([]binning.Interval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT interval_type, range_start, range_end, width, frequency, metric_total,
			metric_density, pct_metric_of_total, pct_frequency_of_total, frequency_density
		FROM interval_results
		WHERE run_id = ?
		ORDER BY CASE interval_type WHEN 'LARGE' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var out []binning.Interval
	for rows.Next() {
		var iv binning.Interval
		var kind string
		if err := rows.Scan(&kind, &iv.Start, &iv.End, &iv.Width, &iv.Frequency, &iv.MetricTotal,
			&iv.MetricDensity, &iv.PctMetricOfTotal, &iv.PctFrequencyOfTotal, &iv.FrequencyDensity); err != nil {
			return nil, err
		}
		iv.Kind = binning.IntervalKind(kind)
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (db *DB) runFineBins(ctx context.Context, id string) ([]binning.HistogramBin, []int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT bin_index, edge_left, edge_right, frequency, weight_sum, metric, run_group
		FROM fine_bins
		WHERE run_id = ?
		ORDER BY bin_index`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query fine bins: %w", err)
	}
	defer rows.Close()

	var (
		bins   []binning.HistogramBin
		groups []int
	)
	for rows.Next() {
		var b binning.HistogramBin
		var g int
		if err := rows.Scan(&b.K, &b.EdgeLeft, &b.EdgeRight, &b.Frequency, &b.WeightSum, &b.Metric, &g); err != nil {
			return nil, nil, err
		}
		b.Center = (b.EdgeLeft + b.EdgeRight) / 2
		bins = append(bins, b)
		groups = append(groups, g)
	}
	return bins, groups, rows.Err()
}
