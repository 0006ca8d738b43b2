package binning

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// DefaultMicroBins is the default number of pre-aggregation bins U.
const DefaultMicroBins = 20000

// maxMicroBins bounds the dense accumulators allocated per shard.
const maxMicroBins = 1 << 22

// shardSize is the minimum number of observations worth a separate worker.
const shardSize = 1 << 16

// MicroTable is the dense result of pre-aggregating an observation set into
// U equal-width bins of transform space. Every candidate bin count is scored
// from this table, so the O(N) pass over the observations happens once.
type MicroTable struct {
	Transform Transform
	U         int
	TMin      float64
	TMax      float64
	Width     float64
	N         int
	Counts    []int
	Weights   []float64
}

// Index returns the micro-bin of v. Values on an interior boundary go to the
// bin whose right edge they sit on; the bin holding TMin is always bin 0.
// A zero-width table (constant input) maps everything to bin 0.
func (m *MicroTable) Index(v float64) int {
	if m.Width == 0 {
		return 0
	}
	u := int(math.Ceil((m.Transform.Forward(v)-m.TMin)/m.Width)) - 1
	if u < 0 {
		return 0
	}
	if u > m.U-1 {
		return m.U - 1
	}
	return u
}

// Bins returns the populated micro-bins in index order.
func (m *MicroTable) Bins() []MicroBin {
	var out []MicroBin
	for u, c := range m.Counts {
		if c == 0 {
			continue
		}
		out = append(out, MicroBin{Index: u, Count: c, WeightSum: m.Weights[u]})
	}
	return out
}

// BuildMicroBins assigns every valid observation to one of u micro-bins
// spanning the summary's range in transform space. Inputs larger than one
// shard are split across at most workers goroutines, each filling its own
// accumulator; the shards are summed once all of them finish.
func BuildMicroBins(ctx context.Context, obs []Observation, t Transform, s StatSummary, u, workers int) (*MicroTable, error) {
	if u < 1 || u > maxMicroBins {
		return nil, fmt.Errorf("micro bin count must be in [1, %d], got %d", maxMicroBins, u)
	}
	if s.Count == 0 {
		return nil, &EmptyDatasetError{Stage: "micro-binning", Skipped: s.Skipped}
	}

	table := &MicroTable{
		Transform: t,
		U:         u,
		TMin:      t.Forward(s.Min),
		TMax:      t.Forward(s.Max),
	}
	table.Width = (table.TMax - table.TMin) / float64(u)

	shards := shardCount(len(obs), workers)
	counts := make([][]int, shards)
	weights := make([][]float64, shards)
	per := (len(obs) + shards - 1) / shards

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < shards; i++ {
		lo := i * per
		hi := min(lo+per, len(obs))
		g.Go(func() error {
			c := make([]int, u)
			w := make([]float64, u)
			for j, o := range obs[lo:hi] {
				if j%shardSize == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if !t.accepts(o.Value) || !finite(o.Weight) {
					continue
				}
				k := table.Index(o.Value)
				c[k]++
				w[k] += o.Weight
			}
			counts[i], weights[i] = c, w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table.Counts, table.Weights = counts[0], weights[0]
	for i := 1; i < shards; i++ {
		for k := 0; k < u; k++ {
			table.Counts[k] += counts[i][k]
			table.Weights[k] += weights[i][k]
		}
	}
	for _, c := range table.Counts {
		table.N += c
	}
	return table, nil
}

func shardCount(n, workers int) int {
	if workers < 1 {
		workers = 1
	}
	shards := n / shardSize
	if shards < 1 {
		return 1
	}
	return min(shards, workers)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
