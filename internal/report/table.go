// Package report renders engine results as tables and charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/amount.report/internal/binning"
)

// Columns is the header of the interval table, in output order.
var Columns = []string{
	"interval_type",
	"range_start",
	"range_end",
	"width",
	"frequency",
	"metric_total",
	"metric_density",
	"pct_metric_of_total",
	"pct_frequency_of_total",
	"frequency_density",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func row(iv binning.Interval) []string {
	return []string{
		string(iv.Kind),
		formatFloat(iv.Start),
		formatFloat(iv.End),
		formatFloat(iv.Width),
		strconv.Itoa(iv.Frequency),
		formatFloat(iv.MetricTotal),
		formatFloat(iv.MetricDensity),
		formatFloat(iv.PctMetricOfTotal),
		formatFloat(iv.PctFrequencyOfTotal),
		formatFloat(iv.FrequencyDensity),
	}
}

// WriteTableCSV writes the header and one row per interval.
func WriteTableCSV(w io.Writer, intervals []binning.Interval) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, iv := range intervals {
		if err := cw.Write(row(iv)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableText writes an aligned table for terminals. Numbers are rounded
// for reading; use WriteTableCSV for exact values.
func WriteTableText(w io.Writer, intervals []binning.Interval) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TYPE\tSTART\tEND\tWIDTH\tFREQ\tMETRIC\tMETRIC/UNIT\t% METRIC\t% FREQ\tFREQ/UNIT\t")
	for _, iv := range intervals {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%.2f\t%.1f\t%.1f\t%.2f\t\n",
			iv.Kind, iv.Start, iv.End, iv.Width, iv.Frequency, iv.MetricTotal,
			iv.MetricDensity, iv.PctMetricOfTotal, iv.PctFrequencyOfTotal, iv.FrequencyDensity)
	}
	return tw.Flush()
}
