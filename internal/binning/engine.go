package binning

import (
	"context"
	"fmt"
	"runtime"

	"github.com/banshee-data/amount.report/internal/monitoring"
)

// Config holds every tunable of an engine run. Each cascade pass carries its
// own grid and threshold.
type Config struct {
	Metric          Metric     `json:"metric"`
	Workers         int        `json:"workers"`
	LogPass         PassConfig `json:"log_pass"`
	LinearPass      PassConfig `json:"linear_pass"`
	MediumThreshold float64    `json:"medium_threshold"`
	FineWidth       float64    `json:"fine_width"`
	Hotspots        int        `json:"hotspots"`
}

// DefaultConfig returns the documented defaults: U=20000, M in [64, 4096]
// with step 1.03, both thresholds 0.90, medium threshold 0.80 and a fine
// width of 1 unit.
func DefaultConfig() Config {
	return Config{
		Metric:          MetricWeight,
		Workers:         runtime.GOMAXPROCS(0),
		LogPass:         DefaultPassConfig(TransformLog),
		LinearPass:      DefaultPassConfig(TransformLinear),
		MediumThreshold: DefaultMediumThreshold,
		FineWidth:       DefaultFineWidth,
		Hotspots:        DefaultHotspots,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Metric != MetricWeight && c.Metric != MetricCount {
		return fmt.Errorf("unknown metric %v", c.Metric)
	}
	if err := c.LogPass.Validate(); err != nil {
		return fmt.Errorf("log pass: %w", err)
	}
	if err := c.LinearPass.Validate(); err != nil {
		return fmt.Errorf("linear pass: %w", err)
	}
	if !(c.MediumThreshold > 0 && c.MediumThreshold <= 1) {
		return fmt.Errorf("medium_threshold must be in (0, 1], got %v", c.MediumThreshold)
	}
	if !(c.FineWidth > 0) {
		return fmt.Errorf("fine_width must be positive, got %v", c.FineWidth)
	}
	if c.Hotspots < 0 {
		return fmt.Errorf("hotspots must be non-negative, got %d", c.Hotspots)
	}
	return nil
}

// Result is the full output of one engine run. The three Intervals are the
// output table; the rest is kept for inspection and charts.
type Result struct {
	Population Population     `json:"population"`
	Passes     [2]PassResult  `json:"passes"`
	Core       int            `json:"core_observations"`
	Fine       []HistogramBin `json:"fine"`
	Runs       RunDetection   `json:"runs"`
	Hotspots   []HistogramBin `json:"hotspots"`
	Intervals  [3]Interval    `json:"intervals"`
}

// Engine runs the cascade. It holds no mutable state and may be shared.
type Engine struct {
	cfg    Config
	consts *Constants
}

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg, consts: NewConstants()}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run computes the strategic intervals of obs. The input is not modified.
func (e *Engine) Run(ctx context.Context, obs []Observation) (*Result, error) {
	if len(obs) == 0 {
		return nil, &EmptyDatasetError{Stage: "input"}
	}
	res := &Result{Population: e.population(obs)}
	if res.Population.Count == 0 {
		return nil, &EmptyDatasetError{Stage: "input", Skipped: len(obs)}
	}

	passes, core, err := Cascade(ctx, obs, e.cfg.LogPass, e.cfg.LinearPass, e.cfg.Metric, e.consts, e.cfg.Workers)
	res.Passes = passes
	if err != nil {
		return res, err
	}
	res.Core = len(core)

	if res.Fine, err = BuildFineHistogram(core, e.cfg.FineWidth, e.cfg.Metric); err != nil {
		return res, fmt.Errorf("fine histogram: %w", err)
	}
	if res.Runs, err = DetectRuns(res.Fine); err != nil {
		return res, err
	}
	res.Hotspots = TopBins(res.Fine, e.cfg.Hotspots)
	if res.Intervals, err = SummarizeIntervals(res.Fine, res.Population, e.cfg.MediumThreshold); err != nil {
		return res, err
	}

	for _, iv := range res.Intervals {
		monitoring.Logf("%-6s [%g, %g] frequency=%d metric=%g (%.1f%% of metric, %.1f%% of frequency)",
			iv.Kind, iv.Start, iv.End, iv.Frequency, iv.MetricTotal, iv.PctMetricOfTotal, iv.PctFrequencyOfTotal)
	}
	return res, nil
}

func (e *Engine) population(obs []Observation) Population {
	var p Population
	for _, o := range obs {
		if !TransformLinear.accepts(o.Value) || !finite(o.Weight) {
			continue
		}
		p.Count++
		p.Metric += e.cfg.Metric.of(1, o.Weight)
	}
	return p
}
