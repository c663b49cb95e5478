package cli

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/eodata/hdaget/internal/cloud/providers"
	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/core"
	"github.com/eodata/hdaget/internal/events"
	"github.com/eodata/hdaget/internal/http"
	"github.com/eodata/hdaget/internal/logging"
	"github.com/eodata/hdaget/internal/metrics"
	"github.com/eodata/hdaget/internal/pathutil"
	"github.com/eodata/hdaget/internal/progress"
	"github.com/eodata/hdaget/internal/util/filter"
)

// runFlags are the flags shared by the commands that talk to the broker.
type runFlags struct {
	overrides config.Overrides
	include   string
	exclude   string
	search    string
}

func (f *runFlags) addBrokerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.overrides.DatasetID, "dataset", "d", "", "Dataset id (defaults to the query's datasetId)")
	cmd.Flags().StringVarP(&f.overrides.Username, "username", "u", "", "Broker username")
	cmd.Flags().IntVar(&f.overrides.PageSize, "page-size", 0, "Results per page")
	cmd.Flags().BoolVar(&f.overrides.AllPages, "all-pages", false, "Fetch every result page instead of only the first")
	cmd.Flags().StringVar(&f.include, "include", "", "Comma-separated glob patterns a result filename must match")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Comma-separated glob patterns that drop a result")
	cmd.Flags().StringVar(&f.search, "search", "", "Comma-separated substrings a result filename must contain")
}

func (f *runFlags) addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.overrides.DownloadDir, "output", "o", "", "Download directory")
	cmd.Flags().StringVar(&f.overrides.Extension, "ext", "", "Extension appended to downloaded filenames (e.g. .zip)")
	cmd.Flags().StringVar(&f.overrides.NameOverride, "name", "", "Local filename to use instead of the broker's")
	cmd.Flags().StringVar(&f.overrides.PublishTo, "publish-to", "", "Copy downloads to s3://bucket/prefix or an Azure container URL")
}

func (f *runFlags) filter() filter.Config {
	return filter.Config{
		Include: filter.ParsePatternList(f.include),
		Exclude: filter.ParsePatternList(f.exclude),
		Search:  filter.ParsePatternList(f.search),
	}
}

// loadConfig merges the config file, .env files, environment and flags, then
// resolves the api key. When only a username is known the password is
// prompted for on a terminal.
func loadConfig(o config.Overrides) (*config.Config, error) {
	log := GetLogger()

	if err := config.LoadEnvFiles(""); err != nil {
		log.Warn().Err(err).Msg("Ignoring .env file")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeEnv()
	o.BrokerURL = brokerURL
	o.KeyFile = keyFile
	cfg.MergeOverrides(o)

	if !verbose && !debug && cfg.LogLevel != "" {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	if logFile == "" && cfg.LogFile != "" {
		if err := log.EnableFile(cfg.LogFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.LogFile).Msg("Could not open log file")
		}
	}

	source, present := cfg.ResolveAPIKey(apiKey, keyFile)
	if len(present) > 1 {
		log.Debug().Str("using", source).Strs("present", present).Msg("Multiple credential sources found")
	}
	if source == config.KeySourceNone && cfg.Username != "" {
		if p := newPrompter(); p.isTerm {
			pw, err := p.password(fmt.Sprintf("Password for %s", cfg.Username))
			if err != nil {
				return nil, err
			}
			cfg.Password = pw
			cfg.APIKey = config.GenerateAPIKey(cfg.Username, pw)
		}
	}

	if http.NeedsProxyPassword(cfg) {
		pw, err := newPrompter().password(fmt.Sprintf("Proxy password for %s@%s", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	dir, err := pathutil.ResolveAbsolutePath(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("invalid download directory: %w", err)
	}
	cfg.DownloadDir = dir
	return cfg, nil
}

// pipeline bundles an engine with the collaborators a command reports from.
type pipeline struct {
	engine  *core.Engine
	metrics *metrics.Metrics
	bus     *events.EventBus
	tracker progress.Tracker
	wg      sync.WaitGroup

	interactive bool
}

// newPipeline builds the engine for cfg. When the config names a publish
// target the matching object-storage publisher is attached.
func newPipeline(ctx context.Context, cfg *config.Config, f filter.Config) (*pipeline, error) {
	log := GetLogger()
	pl := &pipeline{
		metrics: metrics.New(),
		bus:     events.NewEventBus(constants.EventBusDefaultBuffer),
		tracker: progress.NewTracker(log),

		interactive: term.IsTerminal(int(os.Stderr.Fd())),
	}

	opts := []core.Option{
		core.WithLogger(log),
		core.WithMetrics(pl.metrics),
		core.WithEvents(pl.bus),
		core.WithTracker(pl.tracker),
		core.WithFilter(f),
	}

	if cfg.PublishTarget != "" {
		client, err := publishClient(cfg, log)
		if err != nil {
			return nil, err
		}
		pub, err := providers.NewPublisher(ctx, cfg.PublishTarget, client, log)
		if err != nil {
			return nil, fmt.Errorf("invalid publish target: %w", err)
		}
		opts = append(opts, core.WithPublisher(pub))
	}

	engine, err := core.NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	pl.engine = engine
	pl.watch(pl.tracker.Writer())
	return pl, nil
}

// publishClient returns the client the object-storage SDKs upload through.
// It shares the broker's proxy settings but has no overall timeout, since a
// single upload request can carry a whole product.
func publishClient(cfg *config.Config, log *logging.Logger) (*nethttp.Client, error) {
	return http.CreateDownloadClient(cfg, log)
}

// watch prints step completions and order outcomes above the progress bars.
// On a terminal the job wait is shown as a spinner.
func (pl *pipeline) watch(w io.Writer) {
	steps := pl.bus.Subscribe(events.EventStep)
	orders := pl.bus.Subscribe(events.EventOrder)
	polls := pl.bus.Subscribe(events.EventPoll)
	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		var spinner *progress.CLIProgress
		for steps != nil || orders != nil || polls != nil {
			select {
			case ev, ok := <-steps:
				if !ok {
					steps = nil
					continue
				}
				e := ev.(*events.StepEvent)
				if e.Step == core.StepAwait {
					switch {
					case !e.Done && pl.interactive:
						spinner = progress.NewCLIProgress()
						spinner.Start(-1, "waiting for job")
					case e.Done && spinner != nil:
						spinner.Finish()
						spinner = nil
					}
				}
				printStep(w, e)
			case ev, ok := <-orders:
				if !ok {
					orders = nil
					continue
				}
				printOrder(w, ev.(*events.OrderEvent))
			case ev, ok := <-polls:
				if !ok {
					polls = nil
					continue
				}
				if e := ev.(*events.PollEvent); spinner != nil && strings.HasPrefix(e.Op, "job ") {
					spinner.SetDescription(fmt.Sprintf("job %s (poll %d)", e.Status, e.Attempt))
					spinner.Update(int64(e.Attempt))
				}
			}
		}
		if spinner != nil {
			spinner.Finish()
		}
	}()
}

// close drains the event printer before the bars, since the printer writes
// through the tracker, then pushes metrics when a Pushgateway is configured.
func (pl *pipeline) close(ctx context.Context, cfg *config.Config) {
	pl.bus.Close()
	pl.wg.Wait()
	pl.tracker.Wait()
	if n := pl.bus.GetDroppedEventCount(); n > 0 {
		GetLogger().Debug().Int64("dropped", n).Msg("Progress events dropped on full subscriber buffers")
	}
	if cfg.MetricsPushURL == "" {
		return
	}
	if err := pl.metrics.Push(ctx, cfg.MetricsPushURL, cfg.MetricsJob); err != nil {
		GetLogger().Warn().Err(err).Str("url", cfg.MetricsPushURL).Msg("Failed to push metrics")
	}
}

func printStep(w io.Writer, e *events.StepEvent) {
	if !e.Done {
		return
	}
	if e.Error != nil {
		fmt.Fprintf(w, "✗ %-8s %v\n", e.Step, e.Error)
		return
	}
	fmt.Fprintf(w, "✓ %-8s %s\n", e.Step, e.Duration.Round(time.Millisecond))
}

func printOrder(w io.Writer, e *events.OrderEvent) {
	if e.Error != nil {
		fmt.Fprintf(w, "  order %d/%d %s failed: %v\n", e.Index+1, e.Total, e.Filename, e.Error)
		return
	}
	fmt.Fprintf(w, "  order %d/%d %s ready (%s)\n", e.Index+1, e.Total, e.Filename, e.OrderID)
}

// maskSecret hides all but the length of a secret.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	return fmt.Sprintf("<set (%d chars)>", len(s))
}
