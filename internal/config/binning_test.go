package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/banshee-data/amount.report/internal/binning"
)

func TestDefaultBinningConfig(t *testing.T) {
	cfg := DefaultBinningConfig()

	if cfg.Metric == nil || *cfg.Metric != "weight" {
		t.Errorf("Expected Metric weight, got %v", cfg.Metric)
	}
	if cfg.LogMicroBins == nil || *cfg.LogMicroBins != 20000 {
		t.Errorf("Expected LogMicroBins 20000, got %v", cfg.LogMicroBins)
	}
	if cfg.LinearBinStep == nil || *cfg.LinearBinStep != 1.03 {
		t.Errorf("Expected LinearBinStep 1.03, got %v", cfg.LinearBinStep)
	}
	if cfg.Workers != nil {
		t.Errorf("Expected Workers unset, got %d", *cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}

	got, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	want := binning.DefaultConfig()
	if got != want {
		t.Errorf("EngineConfig() = %+v, want %+v", got, want)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := &BinningConfig{}
	if cfg.GetMetric() != "weight" {
		t.Errorf("GetMetric() = %q, want weight", cfg.GetMetric())
	}
	if cfg.GetWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("GetWorkers() = %d, want GOMAXPROCS", cfg.GetWorkers())
	}
	if cfg.GetLogMinBins() != 64 || cfg.GetLinearMaxBins() != 4096 {
		t.Errorf("bin range = [%d, %d], want [64, 4096]", cfg.GetLogMinBins(), cfg.GetLinearMaxBins())
	}
	if cfg.GetLogThreshold() != 0.9 || cfg.GetLinearThreshold() != 0.9 {
		t.Errorf("thresholds = %v, %v, want 0.9", cfg.GetLogThreshold(), cfg.GetLinearThreshold())
	}
	if cfg.GetMediumThreshold() != 0.8 {
		t.Errorf("GetMediumThreshold() = %v, want 0.8", cfg.GetMediumThreshold())
	}
	if cfg.GetFineBinWidth() != 1 {
		t.Errorf("GetFineBinWidth() = %v, want 1", cfg.GetFineBinWidth())
	}
	if cfg.GetHotspots() != 3 {
		t.Errorf("GetHotspots() = %d, want 3", cfg.GetHotspots())
	}
}

func TestLoadBinningConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "json",
			file: "binning.json",
			body: `{
  "metric": "count",
  "log_threshold": 0.95,
  "linear_max_bins": 1024,
  "fine_bin_width": 0.5
}`,
		},
		{
			name: "yaml",
			file: "binning.yaml",
			body: "metric: count\nlog_threshold: 0.95\nlinear_max_bins: 1024\nfine_bin_width: 0.5\n",
		},
		{
			name: "yml",
			file: "binning.yml",
			body: "metric: count\nlog_threshold: 0.95\nlinear_max_bins: 1024\nfine_bin_width: 0.5\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			cfg, err := LoadBinningConfig(path)
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if cfg.GetMetric() != "count" {
				t.Errorf("GetMetric() = %q, want count", cfg.GetMetric())
			}
			if cfg.GetLogThreshold() != 0.95 {
				t.Errorf("GetLogThreshold() = %v, want 0.95", cfg.GetLogThreshold())
			}
			if cfg.GetLinearMaxBins() != 1024 {
				t.Errorf("GetLinearMaxBins() = %d, want 1024", cfg.GetLinearMaxBins())
			}
			if cfg.GetFineBinWidth() != 0.5 {
				t.Errorf("GetFineBinWidth() = %v, want 0.5", cfg.GetFineBinWidth())
			}
			// omitted fields keep their defaults
			if cfg.GetLogMaxBins() != 4096 {
				t.Errorf("GetLogMaxBins() = %d, want 4096", cfg.GetLogMaxBins())
			}

			ec, err := cfg.EngineConfig()
			if err != nil {
				t.Fatalf("EngineConfig: %v", err)
			}
			if ec.Metric != binning.MetricCount {
				t.Errorf("engine metric = %v, want count", ec.Metric)
			}
			if ec.LogPass.Transform != binning.TransformLog || ec.LinearPass.Transform != binning.TransformLinear {
				t.Errorf("pass transforms = %v, %v", ec.LogPass.Transform, ec.LinearPass.Transform)
			}
		})
	}
}

func TestLoadBinningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", "/nonexistent/path/to/config.json"},
		{"extension", write("binning.toml", "metric = 'count'")},
		{"bad_json", write("bad.json", `{"log_threshold": "high"`)},
		{"bad_yaml", write("bad.yaml", "log_min_bins: [1, 2\n")},
		{"invalid_value", write("invalid.json", `{"log_min_bins": 1}`)},
		{"unknown_metric", write("metric.yaml", "metric: median\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBinningConfig(tt.path); err == nil {
				t.Errorf("expected error loading %s", tt.path)
			}
		})
	}

	big := make([]byte, maxFileSize+1)
	for i := range big {
		big[i] = ' '
	}
	if _, err := LoadBinningConfig(write("big.json", string(big))); err == nil {
		t.Error("expected error for oversized file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *BinningConfig
		wantErr bool
	}{
		{"defaults", DefaultBinningConfig(), false},
		{"empty", &BinningConfig{}, false},
		{"count_metric", &BinningConfig{Metric: ptrString("count")}, false},
		{"bad_metric", &BinningConfig{Metric: ptrString("sum")}, true},
		{"negative_workers", &BinningConfig{Workers: ptrInt(-1)}, true},
		{"min_above_max", &BinningConfig{LinearMinBins: ptrInt(5000)}, true},
		{"step_one", &BinningConfig{LogBinStep: ptrFloat64(1)}, true},
		{"threshold_zero", &BinningConfig{LinearThreshold: ptrFloat64(0)}, true},
		{"threshold_one", &BinningConfig{LogThreshold: ptrFloat64(1)}, false},
		{"medium_above_one", &BinningConfig{MediumThreshold: ptrFloat64(1.5)}, true},
		{"zero_width", &BinningConfig{FineBinWidth: ptrFloat64(0)}, true},
		{"no_micro_bins", &BinningConfig{LogMicroBins: ptrInt(0)}, true},
		{"negative_hotspots", &BinningConfig{Hotspots: ptrInt(-2)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultBinningConfig()
	merged := base.Merge(&BinningConfig{
		Metric:       ptrString("count"),
		Workers:      ptrInt(2),
		LogThreshold: ptrFloat64(0.5),
	})

	if merged.GetMetric() != "count" || merged.GetWorkers() != 2 || merged.GetLogThreshold() != 0.5 {
		t.Errorf("override not applied: %s %d %v", merged.GetMetric(), merged.GetWorkers(), merged.GetLogThreshold())
	}
	if merged.GetLinearThreshold() != 0.9 {
		t.Errorf("GetLinearThreshold() = %v, want 0.9", merged.GetLinearThreshold())
	}
	if base.GetMetric() != "weight" {
		t.Errorf("Merge modified the receiver: metric %q", base.GetMetric())
	}
	if base.Merge(nil).GetMetric() != "weight" {
		t.Error("Merge(nil) changed the config")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	ec, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("EngineConfig: %v", err)
	}
	want := binning.DefaultConfig()
	if ec != want {
		t.Errorf("defaults file disagrees with binning.DefaultConfig():\n got %+v\nwant %+v", ec, want)
	}
}
