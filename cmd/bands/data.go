package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/amount.report/internal/api"
	"github.com/banshee-data/amount.report/internal/db"
	"github.com/banshee-data/amount.report/internal/ingest"
)

func handleImport(args []string, stdin io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	source := fs.String("source", "", "Name to store the observations under (required)")
	input := fs.String("input", "", "CSV file to read, or - for stdin (required)")
	valueCol := fs.String("value-col", ingest.DefaultValueColumn, "CSV column holding the values")
	weightCol := fs.String("weight-col", ingest.DefaultWeightColumn, "CSV column holding the weights (optional)")
	replace := fs.Bool("replace", false, "Delete the source's existing observations first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" || *input == "" {
		return fmt.Errorf("-source and -input are required")
	}

	obs, err := readInput(*input, stdin, *valueCol, *weightCol)
	if err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if *replace {
		n, err := database.DeleteSource(ctx, *source)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(out, "Removed %d existing observations from %s\n", n, *source)
		}
	}
	if err := database.InsertObservations(ctx, *source, obs); err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d observations into %s\n", len(obs), *source)
	return nil
}

func handleSources(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	sources, err := database.Sources(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tOBSERVATIONS\tTOTAL_WEIGHT")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", s.Name, s.Count, s.TotalWeight)
	}
	return tw.Flush()
}

func handleRuns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	server := fs.String("server", "", "List the archive of a bands server instead")
	source := fs.String("source", "", "Only list runs of this source")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	var runs []db.IntervalRun
	if *server != "" {
		var err error
		if runs, err = api.NewClient(*server).Runs(ctx, *source, *limit); err != nil {
			return err
		}
	} else {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if runs, err = database.ListRuns(ctx, *source, *limit); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tCREATED\tSOURCE\tMETRIC\tN\tLARGE\tMEDIUM\tSMALL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d", r.RunID, r.CreatedAt.Format(time.RFC3339), r.Source, r.Metric, r.Population.Count)
		for _, iv := range r.Intervals {
			fmt.Fprintf(tw, "\t[%g, %g]", iv.Start, iv.End)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
