package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/core"
	"github.com/eodata/hdaget/internal/models"
	"github.com/eodata/hdaget/internal/util/strings"
)

// errRunFailures is returned when a continue-on-error run finished with
// failed orders or downloads.
var errRunFailures = errors.New("some products could not be fetched")

// queryConfig loads the query document and the configuration for it. The
// dataset id defaults to the one named in the query.
func queryConfig(path string, o config.Overrides) (*config.Config, json.RawMessage, error) {
	query, err := config.LoadQuery(path)
	if err != nil {
		return nil, nil, err
	}
	if o.DatasetID == "" {
		o.DatasetID = config.QueryDatasetID(query)
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateForQuery(); err != nil {
		return nil, nil, err
	}
	return cfg, query, nil
}

// newSearchCmd creates the 'search' command.
func newSearchCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "search <query-file>",
		Short: "Submit a query and list the matching products",
		Long: `Submit a data request and list its results without ordering anything.

The query file is JSON or YAML and is sent to the broker unchanged.

Example:
  hdaget search query.json --all-pages`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, query, err := queryConfig(args[0], flags.overrides)
			if err != nil {
				return err
			}
			pl, err := newPipeline(cmd.Context(), cfg, flags.filter())
			if err != nil {
				return err
			}
			s := core.NewSession(cfg)
			report, err := pl.engine.Run(cmd.Context(), s, query, core.RunOptions{ListOnly: true})
			pl.close(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			fmt.Printf("\nJob %s: %s\n\n", report.JobID, strings.Count(len(report.Results), "product"))
			printResults(os.Stdout, report.Results)
			return nil
		},
	}
	flags.addBrokerFlags(cmd)
	return cmd
}

// newFetchCmd creates the 'fetch' command.
func newFetchCmd() *cobra.Command {
	var (
		flags           runFlags
		continueOnError bool
		overwrite       bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <query-file>",
		Short: "Submit a query, order every result and download the files",
		Long: `Run a complete retrieval: obtain a token, accept the terms, submit the query,
wait for the job, list the results, order each one and download the files.

By default the run stops at the first failed order. With --continue-on-error
every product is attempted and the failures are listed at the end.

Examples:
  hdaget fetch query.json -o ./data
  hdaget fetch query.yaml --all-pages --include "*.nc" --continue-on-error
  hdaget fetch query.json --publish-to s3://bucket/sentinel3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, query, err := queryConfig(args[0], flags.overrides)
			if err != nil {
				return err
			}
			if overwrite {
				cfg.Overwrite = true
			}
			return runPipeline(cmd, cfg, flags, query, "", continueOnError)
		},
	}
	flags.addBrokerFlags(cmd)
	flags.addDownloadFlags(cmd)
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep going after a failed order or download")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files instead of adding a numeric suffix")
	return cmd
}

// newOrderCmd creates the 'order' command.
func newOrderCmd() *cobra.Command {
	var (
		flags           runFlags
		continueOnError bool
		overwrite       bool
	)

	cmd := &cobra.Command{
		Use:   "order <job-id>",
		Short: "Order and download the results of an existing job",
		Long: `Resume from a job submitted earlier, for example by 'hdaget search'.
The job is polled until complete, then every result is ordered and downloaded.

Example:
  hdaget order 5e5a6c3e-0f2d-4a4c-8f43-1c1d9a2b7f00 -d EO:EUM:DAT:SENTINEL-3:SR_2_WAT___`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.overrides)
			if err != nil {
				return err
			}
			if overwrite {
				cfg.Overwrite = true
			}
			return runPipeline(cmd, cfg, flags, nil, args[0], continueOnError)
		},
	}
	flags.addBrokerFlags(cmd)
	flags.addDownloadFlags(cmd)
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep going after a failed order or download")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files instead of adding a numeric suffix")
	return cmd
}

// runPipeline runs a full retrieval, either from a query or resuming jobID,
// and prints the summary.
func runPipeline(cmd *cobra.Command, cfg *config.Config, flags runFlags, query json.RawMessage, jobID string, continueOnError bool) error {
	ctx := cmd.Context()
	logger := GetLogger()

	pl, err := newPipeline(ctx, cfg, flags.filter())
	if err != nil {
		return err
	}
	s := core.NewSession(cfg)
	s.JobID = jobID

	logger.Info().
		Str("broker", s.BrokerURL).
		Str("dataset", s.DatasetID).
		Str("dir", s.DownloadDir).
		Msg("Starting retrieval")

	report, err := pl.engine.Run(ctx, s, query, core.RunOptions{ContinueOnError: continueOnError})
	pl.close(ctx, cfg)
	if report != nil {
		printReport(os.Stdout, report)
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return errRunFailures
	}
	return nil
}

func printResults(w io.Writer, results []models.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILENAME\tSIZE\tSTART\tEND")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Filename, strings.HumanBytes(r.Size),
			formatDate(r.ProductInfo.Start()), formatDate(r.ProductInfo.End()))
	}
	tw.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func printReport(w io.Writer, r *core.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, "=======")
	if r.JobID != "" {
		fmt.Fprintf(w, "  Job:        %s\n", r.JobID)
	}
	fmt.Fprintf(w, "  Results:    %d\n", len(r.Results))
	if len(r.Orders) > 0 {
		fmt.Fprintf(w, "  Orders:     %d ok, %d failed\n", len(r.Orders)-len(r.FailedOrders()), len(r.FailedOrders()))
	}
	if len(r.Downloads) > 0 {
		fmt.Fprintf(w, "  Downloads:  %d ok, %d failed (%s)\n",
			len(r.Downloads)-len(r.FailedDownloads()), len(r.FailedDownloads()), strings.HumanBytes(r.Bytes()))
	}
	if len(r.Published) > 0 {
		failed := 0
		for _, p := range r.Published {
			if p.Err != nil {
				failed++
			}
		}
		fmt.Fprintf(w, "  Published:  %d ok, %d failed\n", len(r.Published)-failed, failed)
	}
	fmt.Fprintf(w, "  Elapsed:    %s\n", r.Elapsed.Round(time.Millisecond))

	if len(r.Durations) > 0 {
		steps := make([]string, 0, len(r.Durations))
		for step := range r.Durations {
			steps = append(steps, step)
		}
		sort.Strings(steps)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Steps:")
		for _, step := range steps {
			fmt.Fprintf(w, "  %-10s %s\n", step+":", r.Durations[step].Round(time.Millisecond))
		}
	}

	for _, o := range r.FailedOrders() {
		fmt.Fprintf(w, "  ✗ order %s: %v\n", o.Result.Filename, o.Err)
	}
	for _, d := range r.FailedDownloads() {
		fmt.Fprintf(w, "  ✗ download %s: %v\n", d.OrderID, d.Err)
	}
	for _, p := range r.Published {
		if p.Err != nil {
			fmt.Fprintf(w, "  ✗ publish %s: %v\n", p.Path, p.Err)
		}
	}
}
