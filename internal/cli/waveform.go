package cli

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/waveform"
)

const defaultWaveformVar = "waveform_20_ku"

// newWaveformCmd creates the 'waveform' command group.
func newWaveformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waveform",
		Short: "Inspect altimetry waveforms in downloaded NetCDF files",
		Long: `Read a 2-D waveform variable (records × samples) from a downloaded
NetCDF-classic product and print summary statistics.

Commands:
  info   - List the variables of a file
  stats  - Per-sample percentile-band mean and per-record peaks`,
	}
	cmd.AddCommand(newWaveformInfoCmd())
	cmd.AddCommand(newWaveformStatsCmd())
	return cmd
}

func newWaveformInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.nc>",
		Short: "List the variables of a NetCDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := waveform.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if title, ok := f.Attribute("", "title").(string); ok && title != "" {
				fmt.Printf("%s\n\n", title)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tDIMENSIONS\tSHAPE\tUNITS")
			for _, v := range f.Variables() {
				shape := make([]string, len(v.Lengths))
				for i, n := range v.Lengths {
					shape[i] = fmt.Sprint(n)
				}
				units, _ := f.Attribute(v.Name, "units").(string)
				dims := strings.Join(v.Dims, ", ")
				if v.Record {
					dims += " (record)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, dims, strings.Join(shape, " × "), units)
			}
			return tw.Flush()
		},
	}
}

func newWaveformStatsCmd() *cobra.Command {
	var (
		name    string
		lo, hi  float64
		records int
	)

	cmd := &cobra.Command{
		Use:   "stats <file.nc>",
		Short: "Print waveform statistics",
		Long: `Load a waveform variable, apply scale_factor, add_offset and _FillValue,
then print for every sample bin the mean of the values between the --lo and
--hi percentiles across records, followed by the peak of the first records.

Example:
  hdaget waveform stats S3A_SR_2_WAT.nc --var waveform_20_ku --lo 10 --hi 90`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := waveform.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w, err := f.Load(name)
			if err != nil {
				return err
			}
			band, err := waveform.PercentileMean(w, lo, hi)
			if err != nil {
				return err
			}
			n, s := w.Dims()
			fmt.Printf("%s: %d records × %d samples", w.Name, n, s)
			if w.Units != "" {
				fmt.Printf(" [%s]", w.Units)
			}
			fmt.Println()

			fmt.Printf("\nMean of the %g-%g percentile band per sample:\n", lo, hi)
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SAMPLE\tMEAN")
			for j, v := range band {
				fmt.Fprintf(tw, "%d\t%s\n", j, formatValue(v))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			summary := waveform.Summary(w)
			if records >= 0 && records < len(summary) {
				summary = summary[:records]
			}
			if len(summary) == 0 {
				return nil
			}
			fmt.Println("\nRecords:")
			tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORD\tVALID\tPEAK BIN\tPEAK\tMEAN")
			for _, r := range summary {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", r.Index, r.Valid, r.PeakIndex, formatValue(r.Peak), formatValue(r.Mean))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&name, "var", defaultWaveformVar, "Waveform variable name")
	cmd.Flags().Float64Var(&lo, "lo", 0, "Lower percentile of the band (0-100)")
	cmd.Flags().Float64Var(&hi, "hi", 100, "Upper percentile of the band (0-100)")
	cmd.Flags().IntVar(&records, "records", 10, "Number of records to summarize (-1 for all)")
	return cmd
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}
