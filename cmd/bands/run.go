package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/amount.report/internal/api"
	"github.com/banshee-data/amount.report/internal/binning"
	"github.com/banshee-data/amount.report/internal/config"
	"github.com/banshee-data/amount.report/internal/db"
	"github.com/banshee-data/amount.report/internal/ingest"
	"github.com/banshee-data/amount.report/internal/report"
	"github.com/banshee-data/amount.report/internal/security"
)

type runOptions struct {
	configPath string
	metric     string
	workers    int
	input      string
	valueCol   string
	weightCol  string
	dbPath     string
	source     string
	server     string
	archive    bool
	format     string
	htmlPath   string
	pngPath    string
}

func (o runOptions) validate() error {
	if (o.input == "") == (o.source == "") {
		return fmt.Errorf("exactly one of -input and -source is required")
	}
	if o.source != "" && o.dbPath == "" && o.server == "" {
		return fmt.Errorf("-source requires -db or -server")
	}
	if o.archive && o.dbPath == "" && o.server == "" {
		return fmt.Errorf("-archive requires -db or -server")
	}
	switch o.format {
	case "text", "csv", "json":
	default:
		return fmt.Errorf("unknown -format %q (want text, csv or json)", o.format)
	}
	return nil
}

func handleRun(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var o runOptions
	fs.StringVar(&o.configPath, "config", "", "Binning config file (.json, .yaml or .yml)")
	fs.StringVar(&o.metric, "metric", "", "Override the metric: weight or count")
	fs.IntVar(&o.workers, "workers", 0, "Override the worker count (0 keeps the config)")
	fs.StringVar(&o.input, "input", "", "CSV file to read, or - for stdin")
	fs.StringVar(&o.valueCol, "value-col", ingest.DefaultValueColumn, "CSV column holding the values")
	fs.StringVar(&o.weightCol, "weight-col", ingest.DefaultWeightColumn, "CSV column holding the weights (optional)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database with stored sources and the run archive")
	fs.StringVar(&o.source, "source", "", "Stored source to run on")
	fs.StringVar(&o.server, "server", "", "Submit the run to a bands server at this URL")
	fs.BoolVar(&o.archive, "archive", false, "Archive the run")
	fs.StringVar(&o.format, "format", "text", "Output format: text, csv or json")
	fs.StringVar(&o.htmlPath, "html", "", "Write a chart page to this file")
	fs.StringVar(&o.pngPath, "png", "", "Write the fine histogram to this image (.png, .svg or .pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}

	settings, err := loadSettings(o)
	if err != nil {
		return err
	}

	var obs []binning.Observation
	if o.input != "" {
		if obs, err = readInput(o.input, stdin, o.valueCol, o.weightCol); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var res *binning.Result
	if o.server != "" {
		res, err = runRemote(ctx, o, settings, obs)
	} else {
		res, err = runLocal(ctx, o, config.DefaultBinningConfig().Merge(settings), obs)
	}
	if err != nil {
		return err
	}

	if err := writeResult(out, o.format, res); err != nil {
		return err
	}
	return writeCharts(o, res)
}

// loadSettings returns only what the user set, from -config and the
// override flags. Local runs fill the rest with defaults; remote runs leave
// it to the server's config.
func loadSettings(o runOptions) (*config.BinningConfig, error) {
	settings := &config.BinningConfig{}
	if o.configPath != "" {
		loaded, err := config.LoadBinningConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	override := &config.BinningConfig{}
	if o.metric != "" {
		override.Metric = &o.metric
	}
	if o.workers > 0 {
		override.Workers = &o.workers
	}
	settings = settings.Merge(override)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func readInput(path string, stdin io.Reader, valueCol, weightCol string) ([]binning.Observation, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	obs, stats, err := ingest.ReadCSV(r, ingest.Options{ValueColumn: valueCol, WeightColumn: weightCol})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	log.Printf("read %s: %d rows, %d loaded, %d skipped", path, stats.Rows, stats.Loaded, stats.Skipped)
	return obs, nil
}

// label names the data a run was made on: the stored source, or the CSV
// file's base name.
func (o runOptions) label() string {
	switch {
	case o.source != "":
		return o.source
	case o.input == "-":
		return "stdin"
	default:
		return filepath.Base(o.input)
	}
}

func runLocal(ctx context.Context, o runOptions, cfg *config.BinningConfig, obs []binning.Observation) (*binning.Result, error) {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := binning.NewEngine(engineCfg)
	if err != nil {
		return nil, err
	}

	var database *db.DB
	if o.dbPath != "" {
		if database, err = db.NewDB(o.dbPath); err != nil {
			return nil, err
		}
		defer database.Close()
	}

	if o.source != "" {
		if obs, err = database.Observations(ctx, o.source); err != nil {
			return nil, err
		}
		if len(obs) == 0 {
			return nil, fmt.Errorf("source %q has no observations", o.source)
		}
	}

	start := time.Now()
	res, err := engine.Run(ctx, obs)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)

	if o.archive {
		run, err := db.NewIntervalRun(o.label(), engineCfg, res, took)
		if err != nil {
			return nil, err
		}
		if err := database.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		log.Printf("archived run %s", run.RunID)
	}
	return res, nil
}

func runRemote(ctx context.Context, o runOptions, cfg *config.BinningConfig, obs []binning.Observation) (*binning.Result, error) {
	resp, err := api.NewClient(o.server).Intervals(ctx, api.IntervalsRequest{
		Source:       o.source,
		Observations: obs,
		Config:       cfg,
		Archive:      o.archive,
	})
	if err != nil {
		return nil, err
	}
	if resp.RunID != "" {
		log.Printf("archived run %s on %s", resp.RunID, o.server)
	}
	return resp.Result, nil
}

func writeResult(out io.Writer, format string, res *binning.Result) error {
	switch format {
	case "csv":
		return report.WriteTableCSV(out, res.Intervals[:])
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return report.WriteTableText(out, res.Intervals[:])
	}
}

func writeCharts(o runOptions, res *binning.Result) error {
	for _, path := range []string{o.htmlPath, o.pngPath} {
		if path == "" {
			continue
		}
		if err := security.ValidateOutputPath(path); err != nil {
			return err
		}
	}
	if o.htmlPath != "" {
		f, err := os.Create(o.htmlPath)
		if err != nil {
			return err
		}
		opts := report.HTMLOptions{Title: "Strategic intervals: " + o.label()}
		// Pass rankings do not survive the wire, so remote runs chart the core only.
		if o.server != "" {
			err = report.RenderFine(f, res.Fine, res.Intervals[:], opts)
		} else {
			err = report.RenderHTML(f, res, opts)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		log.Printf("wrote %s", o.htmlPath)
	}
	if o.pngPath != "" {
		if err := report.SavePNG(o.pngPath, res.Fine, "Fine histogram of the core"); err != nil {
			return err
		}
		log.Printf("wrote %s", o.pngPath)
	}
	return nil
}
