// Package testutil provides shared test fixtures.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/amount.report/internal/binning"
)

// TailValues are the sparse large values appended to every cluster fixture.
var TailValues = []float64{700, 800, 900}

// ClusterObservations returns n unit-weight values cycling through 20..28,
// followed by TailValues.
func ClusterObservations(n int) []binning.Observation {
	obs := make([]binning.Observation, 0, n+len(TailValues))
	for i := 0; i < n; i++ {
		obs = append(obs, binning.Observation{Value: float64(20 + i%9), Weight: 1})
	}
	for _, v := range TailValues {
		obs = append(obs, binning.Observation{Value: v, Weight: 1})
	}
	return obs
}

// ClusterCSV renders ClusterObservations(n) as CSV with "amount" and "cost"
// columns and one trailing row that does not parse.
func ClusterCSV(n int) string {
	var b strings.Builder
	b.WriteString("amount,cost\n")
	for _, o := range ClusterObservations(n) {
		fmt.Fprintf(&b, "%g,%g\n", o.Value, o.Weight)
	}
	b.WriteString("not-a-number,1\n")
	return b.String()
}

// WriteFile writes content to name inside a fresh temp dir and returns the
// path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
