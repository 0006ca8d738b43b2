package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/banshee-data/amount.report/internal/binning"
)

// Source is a named set of stored observations.
type Source struct {
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	TotalWeight float64 `json:"total_weight"`
}

// InsertObservations appends obs under source in a single transaction.
func (db *DB) InsertObservations(ctx context.Context, source string, obs []binning.Observation) error {
	if source == "" {
		return fmt.Errorf("source name is required")
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

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations (source, value, weight) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		if _, err := stmt.ExecContext(ctx, source, o.Value, o.Weight); err != nil {
			return fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Observations returns every observation stored under source in insertion
// order.
func (db *DB) Observations(ctx context.Context, source string) ([]binning.Observation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT value, weight FROM observations WHERE source = ? ORDER BY observation_id`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []binning.Observation
	for rows.Next() {
		var o binning.Observation
		if err := rows.Scan(&o.Value, &o.Weight); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// Sources lists the stored sources by name.
func (db *DB) Sources(ctx context.Context) ([]Source, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT source, COUNT(*), COALESCE(SUM(weight), 0)
		FROM observations
		GROUP BY source
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.Name, &s.Count, &s.TotalWeight); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteSource removes every observation stored under source and reports how
// many were deleted.
func (db *DB) DeleteSource(ctx context.Context, source string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM observations WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %q: %w", source, err)
	}
	return res.RowsAffected()
}
