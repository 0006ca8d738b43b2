package binning

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/amount.report/internal/monitoring"
)

// PassConfig parameterises a single Knuth pass.
type PassConfig struct {
	Transform Transform `json:"transform"`
	MicroBins int       `json:"micro_bins"`
	MinBins   int       `json:"min_bins"`
	MaxBins   int       `json:"max_bins"`
	BinStep   float64   `json:"bin_step"`
	Threshold float64   `json:"threshold"`
}

// DefaultPassConfig returns the default grid for transform t.
func DefaultPassConfig(t Transform) PassConfig {
	return PassConfig{
		Transform: t,
		MicroBins: DefaultMicroBins,
		MinBins:   DefaultMinBins,
		MaxBins:   DefaultMaxBins,
		BinStep:   DefaultBinStep,
		Threshold: DefaultThreshold,
	}
}

// Validate checks the pass grid without running it.
func (p PassConfig) Validate() error {
	if p.Transform != TransformLinear && p.Transform != TransformLog {
		return fmt.Errorf("unknown transform %v", p.Transform)
	}
	if p.MicroBins < 1 || p.MicroBins > maxMicroBins {
		return fmt.Errorf("micro_bins must be in [1, %d], got %d", maxMicroBins, p.MicroBins)
	}
	if _, err := GenerateCandidates(p.MinBins, p.MaxBins, p.BinStep); err != nil {
		return err
	}
	if !(p.Threshold > 0 && p.Threshold <= 1) {
		return fmt.Errorf("threshold must be in (0, 1], got %v", p.Threshold)
	}
	return nil
}

// PassResult records everything a pass derived from its input.
type PassResult struct {
	Transform Transform      `json:"transform"`
	Summary   StatSummary    `json:"summary"`
	Scores    []Score        `json:"scores,omitempty"`
	Best      Score          `json:"best"`
	Histogram []HistogramBin `json:"histogram"`
	Ranking   Ranking        `json:"ranking"`
	Retained  int            `json:"retained"`
}

// RunPass bins obs under p, picks the evidence-maximising bin count, and
// returns the observations that fall in the bins of interest. Constant
// input skips the search and yields one bin holding everything.
func RunPass(ctx context.Context, obs []Observation, p PassConfig, metric Metric, c *Constants, workers int) (PassResult, []Observation, error) {
	res := PassResult{Transform: p.Transform}

	s, err := Summarize(obs, p.Transform)
	res.Summary = s
	if err != nil {
		return res, nil, err
	}
	if s.Skipped > 0 {
		monitoring.Logf("%s pass: skipped %d of %d observations", p.Transform, s.Skipped, len(obs))
	}

	table, err := BuildMicroBins(ctx, obs, p.Transform, s, p.MicroBins, workers)
	if err != nil {
		return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
	}

	if s.Constant() {
		res.Best = Score{M: 1, NonEmpty: 1}
	} else {
		candidates, err := GenerateCandidates(p.MinBins, p.MaxBins, p.BinStep)
		if err != nil {
			return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
		}
		if res.Scores, err = c.ScoreCandidates(ctx, table, candidates, workers); err != nil {
			return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
		}
		if res.Best, err = SelectOptimal(res.Scores); err != nil {
			return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
		}
	}

	if res.Histogram, err = BuildHistogram(table, s, res.Best.M, metric); err != nil {
		return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
	}
	if res.Ranking, err = RankBins(res.Histogram, p.Threshold); err != nil {
		return res, nil, fmt.Errorf("%s pass: %w", p.Transform, err)
	}
	kept := FilterObservations(obs, res.Histogram, res.Ranking)
	res.Retained = len(kept)
	return res, kept, nil
}

// Cascade runs the log pass over obs and then the linear pass over the log
// pass's survivors. The passes depend on each other and always run in order.
func Cascade(ctx context.Context, obs []Observation, first, second PassConfig, metric Metric, c *Constants, workers int) ([2]PassResult, []Observation, error) {
	var out [2]PassResult
	input := obs
	for i, p := range []PassConfig{first, second} {
		start := time.Now()
		res, kept, err := RunPass(ctx, input, p, metric, c, workers)
		out[i] = res
		if err != nil {
			return out, nil, err
		}
		monitoring.Logf("pass %d (%s): n=%d M*=%d kept %d/%d bins, retained %d/%d observations in %v",
			i+1, p.Transform, res.Summary.Count, res.Best.M, res.Ranking.Kept(), len(res.Histogram),
			res.Retained, len(input), time.Since(start))
		if len(kept) == 0 {
			return out, nil, &EmptyDatasetError{Stage: fmt.Sprintf("pass %d", i+1)}
		}
		input = kept
	}
	return out, input, nil
}
