// Command bands finds the strategic value intervals of a weighted dataset
// and keeps an archive of past runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/amount.report/internal/version"
)

const defaultDBPath = "bands.db"

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "run":
		err = handleRun(args, os.Stdin, os.Stdout)
	case "import":
		err = handleImport(args, os.Stdin, os.Stdout)
	case "sources":
		err = handleSources(args, os.Stdout)
	case "runs":
		err = handleRuns(args, os.Stdout)
	case "serve":
		err = handleServe(args)
	case "migrate":
		err = handleMigrate(args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `bands - strategic value intervals by Bayesian optimal binning

Usage: bands <command> [options]

Commands:
  run       Compute LARGE, MEDIUM and SMALL intervals from a CSV or stored source
  import    Store a CSV as a named source
  sources   List stored sources
  runs      List archived runs
  serve     Serve the HTTP API and run charts
  migrate   Manage the database schema (up, down, status, to, force)
  version   Show version information
  help      Show this help message

Examples:
  bands run -input payments.csv -weight-col cost
  bands import -db bands.db -source payments -input payments.csv
  bands run -db bands.db -source payments -archive -html payments.html
  bands serve -db bands.db -listen :8080

Run 'bands <command> -h' for the options of a command.`)
}
