package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/amount.report/internal/binning"
)

// DefaultConfigPath is the path to the canonical binning defaults file.
const DefaultConfigPath = "config/binning.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// BinningConfig is the file and API form of the engine settings. Every field
// is optional; the Get* accessors fall back to the engine defaults, so a
// partial file only overrides what it names.
type BinningConfig struct {
	Metric  *string `json:"metric,omitempty" yaml:"metric,omitempty"` // "weight" or "count"
	Workers *int    `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Log-scale pass
	LogMicroBins *int     `json:"log_micro_bins,omitempty" yaml:"log_micro_bins,omitempty"`
	LogMinBins   *int     `json:"log_min_bins,omitempty" yaml:"log_min_bins,omitempty"`
	LogMaxBins   *int     `json:"log_max_bins,omitempty" yaml:"log_max_bins,omitempty"`
	LogBinStep   *float64 `json:"log_bin_step,omitempty" yaml:"log_bin_step,omitempty"`
	LogThreshold *float64 `json:"log_threshold,omitempty" yaml:"log_threshold,omitempty"`

	// Linear-scale pass
	LinearMicroBins *int     `json:"linear_micro_bins,omitempty" yaml:"linear_micro_bins,omitempty"`
	LinearMinBins   *int     `json:"linear_min_bins,omitempty" yaml:"linear_min_bins,omitempty"`
	LinearMaxBins   *int     `json:"linear_max_bins,omitempty" yaml:"linear_max_bins,omitempty"`
	LinearBinStep   *float64 `json:"linear_bin_step,omitempty" yaml:"linear_bin_step,omitempty"`
	LinearThreshold *float64 `json:"linear_threshold,omitempty" yaml:"linear_threshold,omitempty"`

	// Summary
	MediumThreshold *float64 `json:"medium_threshold,omitempty" yaml:"medium_threshold,omitempty"`
	FineBinWidth    *float64 `json:"fine_bin_width,omitempty" yaml:"fine_bin_width,omitempty"`
	Hotspots        *int     `json:"hotspots,omitempty" yaml:"hotspots,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultBinningConfig returns a config with every field set to the engine
// default. Workers is left nil so it follows GOMAXPROCS at run time.
func DefaultBinningConfig() *BinningConfig {
	return &BinningConfig{
		Metric:          ptrString(binning.MetricWeight.String()),
		LogMicroBins:    ptrInt(binning.DefaultMicroBins),
		LogMinBins:      ptrInt(binning.DefaultMinBins),
		LogMaxBins:      ptrInt(binning.DefaultMaxBins),
		LogBinStep:      ptrFloat64(binning.DefaultBinStep),
		LogThreshold:    ptrFloat64(binning.DefaultThreshold),
		LinearMicroBins: ptrInt(binning.DefaultMicroBins),
		LinearMinBins:   ptrInt(binning.DefaultMinBins),
		LinearMaxBins:   ptrInt(binning.DefaultMaxBins),
		LinearBinStep:   ptrFloat64(binning.DefaultBinStep),
		LinearThreshold: ptrFloat64(binning.DefaultThreshold),
		MediumThreshold: ptrFloat64(binning.DefaultMediumThreshold),
		FineBinWidth:    ptrFloat64(binning.DefaultFineWidth),
		Hotspots:        ptrInt(binning.DefaultHotspots),
	}
}

// LoadBinningConfig loads a BinningConfig from a .json, .yaml or .yml file
// of at most 1MB. Omitted fields keep their defaults.
func LoadBinningConfig(path string) (*BinningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &BinningConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory or
// one of its parents. Panics if the file cannot be loaded, intended for test
// setup.
func MustLoadDefaultConfig() *BinningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadBinningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge returns a copy of c with every field set in override replacing the
// value in c.
func (c *BinningConfig) Merge(override *BinningConfig) *BinningConfig {
	out := *c
	if override == nil {
		return &out
	}
	set := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	setInt := func(dst **int, src *int) {
		if src != nil {
			*dst = src
		}
	}
	if override.Metric != nil {
		out.Metric = override.Metric
	}
	setInt(&out.Workers, override.Workers)
	setInt(&out.LogMicroBins, override.LogMicroBins)
	setInt(&out.LogMinBins, override.LogMinBins)
	setInt(&out.LogMaxBins, override.LogMaxBins)
	set(&out.LogBinStep, override.LogBinStep)
	set(&out.LogThreshold, override.LogThreshold)
	setInt(&out.LinearMicroBins, override.LinearMicroBins)
	setInt(&out.LinearMinBins, override.LinearMinBins)
	setInt(&out.LinearMaxBins, override.LinearMaxBins)
	set(&out.LinearBinStep, override.LinearBinStep)
	set(&out.LinearThreshold, override.LinearThreshold)
	set(&out.MediumThreshold, override.MediumThreshold)
	set(&out.FineBinWidth, override.FineBinWidth)
	setInt(&out.Hotspots, override.Hotspots)
	return &out
}

// Validate checks the fields that are set and then the engine config they
// produce together.
func (c *BinningConfig) Validate() error {
	if c.Metric != nil {
		if _, err := binning.ParseMetric(*c.Metric); err != nil {
			return err
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	cfg, err := c.EngineConfig()
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// EngineConfig converts c to the engine's own config type.
func (c *BinningConfig) EngineConfig() (binning.Config, error) {
	metric, err := binning.ParseMetric(c.GetMetric())
	if err != nil {
		return binning.Config{}, err
	}
	return binning.Config{
		Metric:  metric,
		Workers: c.GetWorkers(),
		LogPass: binning.PassConfig{
			Transform: binning.TransformLog,
			MicroBins: c.GetLogMicroBins(),
			MinBins:   c.GetLogMinBins(),
			MaxBins:   c.GetLogMaxBins(),
			BinStep:   c.GetLogBinStep(),
			Threshold: c.GetLogThreshold(),
		},
		LinearPass: binning.PassConfig{
			Transform: binning.TransformLinear,
			MicroBins: c.GetLinearMicroBins(),
			MinBins:   c.GetLinearMinBins(),
			MaxBins:   c.GetLinearMaxBins(),
			BinStep:   c.GetLinearBinStep(),
			Threshold: c.GetLinearThreshold(),
		},
		MediumThreshold: c.GetMediumThreshold(),
		FineWidth:       c.GetFineBinWidth(),
		Hotspots:        c.GetHotspots(),
	}, nil
}

// GetMetric returns the metric name or "weight".
func (c *BinningConfig) GetMetric() string {
	if c.Metric == nil || *c.Metric == "" {
		return binning.MetricWeight.String()
	}
	return *c.Metric
}

// GetWorkers returns the worker count, or GOMAXPROCS when unset or zero.
func (c *BinningConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

func (c *BinningConfig) GetLogMicroBins() int {
	if c.LogMicroBins == nil {
		return binning.DefaultMicroBins
	}
	return *c.LogMicroBins
}

func (c *BinningConfig) GetLogMinBins() int {
	if c.LogMinBins == nil {
		return binning.DefaultMinBins
	}
	return *c.LogMinBins
}

func (c *BinningConfig) GetLogMaxBins() int {
	if c.LogMaxBins == nil {
		return binning.DefaultMaxBins
	}
	return *c.LogMaxBins
}

func (c *BinningConfig) GetLogBinStep() float64 {
	if c.LogBinStep == nil {
		return binning.DefaultBinStep
	}
	return *c.LogBinStep
}

// GetLogThreshold returns the Pareto share kept by the log pass.
func (c *BinningConfig) GetLogThreshold() float64 {
	if c.LogThreshold == nil {
		return binning.DefaultThreshold
	}
	return *c.LogThreshold
}

func (c *BinningConfig) GetLinearMicroBins() int {
	if c.LinearMicroBins == nil {
		return binning.DefaultMicroBins
	}
	return *c.LinearMicroBins
}

func (c *BinningConfig) GetLinearMinBins() int {
	if c.LinearMinBins == nil {
		return binning.DefaultMinBins
	}
	return *c.LinearMinBins
}

func (c *BinningConfig) GetLinearMaxBins() int {
	if c.LinearMaxBins == nil {
		return binning.DefaultMaxBins
	}
	return *c.LinearMaxBins
}

func (c *BinningConfig) GetLinearBinStep() float64 {
	if c.LinearBinStep == nil {
		return binning.DefaultBinStep
	}
	return *c.LinearBinStep
}

// GetLinearThreshold returns the Pareto share kept by the linear pass.
func (c *BinningConfig) GetLinearThreshold() float64 {
	if c.LinearThreshold == nil {
		return binning.DefaultThreshold
	}
	return *c.LinearThreshold
}

// GetMediumThreshold returns the cumulative share that bounds the MEDIUM row.
func (c *BinningConfig) GetMediumThreshold() float64 {
	if c.MediumThreshold == nil {
		return binning.DefaultMediumThreshold
	}
	return *c.MediumThreshold
}

// GetFineBinWidth returns the fine histogram bin width in value units.
func (c *BinningConfig) GetFineBinWidth() float64 {
	if c.FineBinWidth == nil {
		return binning.DefaultFineWidth
	}
	return *c.FineBinWidth
}

func (c *BinningConfig) GetHotspots() int {
	if c.Hotspots == nil {
		return binning.DefaultHotspots
	}
	return *c.Hotspots
}
