// Package ingest loads observations from delimited text.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/amount.report/internal/binning"
)

// Column names used when Options leaves them empty.
const (
	DefaultValueColumn  = "value"
	DefaultWeightColumn = "weight"
)

// Options selects the input columns. WeightColumn is optional: when the
// header does not contain it every row weighs 1.
type Options struct {
	ValueColumn  string
	WeightColumn string
	Comma        rune
}

// Stats counts what ReadCSV did with each data row.
type Stats struct {
	Rows    int `json:"rows"`
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// ReadCSV parses a CSV with a header row into observations. Rows whose value
// or weight does not parse are counted in Stats.Skipped and left out.
// Non-finite numbers parse fine and are left for the engine to skip.
func ReadCSV(r io.Reader, opts Options) ([]binning.Observation, Stats, error) {
	var stats Stats
	if opts.ValueColumn == "" {
		opts.ValueColumn = DefaultValueColumn
	}
	if opts.WeightColumn == "" {
		opts.WeightColumn = DefaultWeightColumn
	}

	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("csv: missing header row")
	}
	if err != nil {
		return nil, stats, fmt.Errorf("csv: failed to read header: %w", err)
	}

	valueIdx, weightIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case strings.ToLower(opts.ValueColumn):
			valueIdx = i
		case strings.ToLower(opts.WeightColumn):
			weightIdx = i
		}
	}
	if valueIdx < 0 {
		return nil, stats, fmt.Errorf("csv: value column %q not in header %v", opts.ValueColumn, header)
	}

	var obs []binning.Observation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return obs, stats, fmt.Errorf("csv: line %d: %w", stats.Rows+2, err)
		}
		stats.Rows++

		o, ok := parseRecord(record, valueIdx, weightIdx)
		if !ok {
			stats.Skipped++
			continue
		}
		obs = append(obs, o)
		stats.Loaded++
	}
	return obs, stats, nil
}

func parseRecord(record []string, valueIdx, weightIdx int) (binning.Observation, bool) {
	o := binning.Observation{Weight: 1}
	if valueIdx >= len(record) {
		return o, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
	if err != nil {
		return o, false
	}
	o.Value = v
	if weightIdx >= 0 {
		if weightIdx >= len(record) {
			return o, false
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(record[weightIdx]), 64)
		if err != nil {
			return o, false
		}
		o.Weight = w
	}
	return o, true
}
