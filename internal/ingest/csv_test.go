package ingest

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/amount.report/internal/binning"
)

func TestReadCSV(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		opts      Options
		want      []binning.Observation
		wantStats Stats
	}{
		{
			name:      "value_and_weight",
			input:     "value,weight\n10.5,2\n99,0.25\n",
			want:      []binning.Observation{{Value: 10.5, Weight: 2}, {Value: 99, Weight: 0.25}},
			wantStats: Stats{Rows: 2, Loaded: 2},
		},
		{
			name:      "missing_weight_column_means_unit_weight",
			input:     "value\n1\n2\n",
			want:      []binning.Observation{{Value: 1, Weight: 1}, {Value: 2, Weight: 1}},
			wantStats: Stats{Rows: 2, Loaded: 2},
		},
		{
			name:      "named_columns_any_order_and_case",
			input:     "ID,Cost,Amount\na,3,120\nb,1,80\n",
			opts:      Options{ValueColumn: "amount", WeightColumn: "cost"},
			want:      []binning.Observation{{Value: 120, Weight: 3}, {Value: 80, Weight: 1}},
			wantStats: Stats{Rows: 2, Loaded: 2},
		},
		{
			name:      "bad_rows_are_skipped",
			input:     "value,weight\n1,1\nabc,1\n2,\n3,1\n4\n",
			want:      []binning.Observation{{Value: 1, Weight: 1}, {Value: 3, Weight: 1}},
			wantStats: Stats{Rows: 5, Loaded: 2, Skipped: 3},
		},
		{
			name:      "semicolon_and_bom",
			input:     "\ufeffvalue; weight\n 5; 2\n",
			opts:      Options{Comma: ';'},
			want:      []binning.Observation{{Value: 5, Weight: 2}},
			wantStats: Stats{Rows: 1, Loaded: 1},
		},
		{
			name:      "header_only",
			input:     "value,weight\n",
			wantStats: Stats{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, stats, err := ReadCSV(strings.NewReader(tc.input), tc.opts)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("observations mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.wantStats, stats)
		})
	}
}

func TestReadCSV_NonFiniteParses(t *testing.T) {
	got, stats, err := ReadCSV(strings.NewReader("value\nNaN\n+Inf\n"), Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0].Value))
	assert.True(t, math.IsInf(got[1].Value, 1))
	assert.Zero(t, stats.Skipped)
}

func TestReadCSV_Errors(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), Options{})
	assert.Error(t, err)

	_, _, err = ReadCSV(strings.NewReader("amount\n1\n"), Options{})
	assert.ErrorContains(t, err, `"value"`)

	_, _, err = ReadCSV(strings.NewReader("value\n\"unterminated\n"), Options{})
	assert.Error(t, err)
}
