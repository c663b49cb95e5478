// Package core runs the broker workflow: authenticate, submit a job, wait for
// it, list results, order each result and download the files.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eodata/hdaget/internal/api"
	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/download"
	"github.com/eodata/hdaget/internal/events"
	"github.com/eodata/hdaget/internal/logging"
	"github.com/eodata/hdaget/internal/metrics"
	"github.com/eodata/hdaget/internal/models"
	"github.com/eodata/hdaget/internal/poll"
	"github.com/eodata/hdaget/internal/progress"
	"github.com/eodata/hdaget/internal/util/filter"
)

// Engine holds the shared machinery for running sessions against one broker.
type Engine struct {
	config    *config.Config
	client    *api.Client
	policy    poll.Policy
	filter    filter.Config
	metrics   *metrics.Metrics
	eventBus  *events.EventBus
	tracker   progress.Tracker
	publisher cloud.Publisher
	logger    *logging.Logger

	maxPages int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and its API client.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records API, poll, order and download metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEvents publishes step, poll, order and transfer events.
func WithEvents(bus *events.EventBus) Option {
	return func(e *Engine) { e.eventBus = bus }
}

// WithTracker sets the download progress tracker.
func WithTracker(t progress.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithPublisher copies every downloaded file to object storage.
func WithPublisher(p cloud.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithPolicy overrides the poll policy taken from the configuration.
func WithPolicy(p poll.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithFilter narrows the listed results before ordering.
func WithFilter(f filter.Config) Option {
	return func(e *Engine) { e.filter = f }
}

// NewEngine creates an engine and its API client.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	e := &Engine{
		config:  cfg,
		policy:   poll.FromConfig(cfg.Poll),
		tracker:  progress.NoOpTracker{},
		maxPages: constants.MaxPaginationPages,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger)

	client, err := api.NewClient(cfg, api.WithLogger(e.logger), api.WithMetrics(e.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	e.client = client
	return e, nil
}

// GetConfig returns the engine configuration.
func (e *Engine) GetConfig() *config.Config { return e.config }

// API returns the unauthenticated API client.
func (e *Engine) API() *api.Client { return e.client }

// authed returns a client carrying the session token.
func (e *Engine) authed(s *Session) (*api.Client, error) {
	if s.Token == "" {
		return nil, api.ErrNoToken
	}
	return e.client.WithToken(s.Token), nil
}

// GetToken exchanges the session api key for a bearer token. On failure the
// session is left without a token.
func (e *Engine) GetToken(ctx context.Context, s *Session) error {
	s.Token = ""
	if s.APIKey == "" {
		return config.ErrMissingCredentials
	}
	token, err := e.client.GetToken(ctx, s.APIKey)
	if err != nil {
		return err
	}
	s.Token = token
	e.logger.Debug().Msg("Bearer token issued")
	return nil
}

// EnsureTermsAccepted accepts the usage terms once. It reads the flag first and
// only sends the acceptance when the broker reports false.
func (e *Engine) EnsureTermsAccepted(ctx context.Context, s *Session) error {
	if s.TermsAccepted {
		return nil
	}
	c, err := e.authed(s)
	if err != nil {
		return err
	}

	termsID := e.config.TermsID
	if termsID == "" {
		termsID = constants.DefaultTermsID
	}

	accepted, err := c.TermsAccepted(ctx, termsID)
	if err != nil {
		return err
	}
	if !accepted {
		if err := c.AcceptTerms(ctx, termsID); err != nil {
			return err
		}
		e.logger.Info().Str("terms", termsID).Msg("Accepted terms and conditions")
	}
	s.TermsAccepted = true
	return nil
}

// QueryMetadata fetches the query parameters the session dataset accepts.
func (e *Engine) QueryMetadata(ctx context.Context, s *Session) (json.RawMessage, error) {
	if s.DatasetID == "" {
		return nil, config.ErrMissingDatasetID
	}
	c, err := e.authed(s)
	if err != nil {
		return nil, err
	}
	return c.QueryMetadata(ctx, s.DatasetID)
}

// SubmitJob posts query unchanged and records the job id. Any state from an
// earlier job is cleared first, so a failed submission leaves JobID empty.
func (e *Engine) SubmitJob(ctx context.Context, s *Session, query json.RawMessage) error {
	s.resetJob()
	c, err := e.authed(s)
	if err != nil {
		return err
	}
	resp, err := c.SubmitJob(ctx, query)
	if err != nil {
		return err
	}
	s.JobID = resp.JobID
	e.logger.Info().Str("job", s.JobID).Msg("Job submitted")
	return nil
}

// AwaitJob polls the job until it completes under the engine poll policy.
func (e *Engine) AwaitJob(ctx context.Context, s *Session) (models.Status, error) {
	if s.JobID == "" {
		return models.StatusPending, api.ErrNoJob
	}
	c, err := e.authed(s)
	if err != nil {
		return models.StatusPending, err
	}

	res, err := poll.Until(ctx, e.policy, "job "+s.JobID, func(ctx context.Context) (poll.Observation, error) {
		return observe(c.GetJobStatus(ctx, s.JobID))
	}, e.observer("job"))
	if err != nil {
		return res.Status, err
	}
	e.logger.Info().Str("job", s.JobID).Int("polls", res.Attempts).Dur("elapsed", res.Elapsed).Msg("Job completed")
	return res.Status, nil
}

// observe converts a status reply. Unknown status strings end the wait.
func observe(st *models.StatusResponse, err error) (poll.Observation, error) {
	if err != nil {
		if api.IsNotFound(err) {
			return poll.Observation{}, poll.Permanent(err)
		}
		return poll.Observation{}, err
	}
	status, err := models.ParseStatus(st.Status)
	if err != nil {
		return poll.Observation{}, poll.Permanent(err)
	}
	return poll.Observation{Status: status, Message: st.Message}, nil
}

func (e *Engine) observer(kind string) func(poll.Attempt) {
	return func(a poll.Attempt) {
		e.metrics.PollAttempt(kind)
		e.eventBus.PublishPoll(a.Op, a.N, a.Status, a.Next, a.Err)
		ev := e.logger.Debug().Str("op", a.Op).Int("attempt", a.N).Str("status", a.Status.String())
		if a.Err != nil {
			ev = ev.Err(a.Err)
		}
		if a.Next > 0 {
			ev = ev.Dur("next", a.Next)
		}
		ev.Msg("Polled status")
	}
}

// ListResults fetches the first page of results, or every page when AllPages
// is configured, and applies the engine filter.
func (e *Engine) ListResults(ctx context.Context, s *Session) ([]models.Result, error) {
	if s.JobID == "" {
		return nil, api.ErrNoJob
	}
	c, err := e.authed(s)
	if err != nil {
		return nil, err
	}

	size := e.config.PageSize
	if size <= 0 {
		size = constants.DefaultPageSize
	}

	var results []models.Result
	for page := 0; page < e.maxPages; page++ {
		rp, err := c.ListResults(ctx, s.JobID, page, size)
		if err != nil {
			return nil, err
		}
		results = append(results, rp.Content...)
		if !e.config.AllPages || !rp.HasNext() || len(rp.Content) == 0 {
			break
		}
		if page == e.maxPages-1 {
			e.logger.Warn().
				Int("pages", e.maxPages).
				Int("listed", len(results)).
				Int("total", rp.TotItems).
				Msg("Stopped listing at the page limit; later results are not included")
		}
	}

	if !e.filter.Empty() {
		before := len(results)
		results = filter.ApplyToResults(results, e.filter)
		e.logger.Info().Int("kept", len(results)).Int("listed", before).Msg("Filtered results")
	}

	s.Results = results
	return results, nil
}

// RequestOrders orders every session result in list order and waits for each
// order to complete. Failures are recorded per item and never shift indices.
// With stopOnFirstError the loop ends after the first failed item.
//
// The returned error is set only when the session cannot order at all or the
// context was cancelled.
func (e *Engine) RequestOrders(ctx context.Context, s *Session, stopOnFirstError bool) ([]OrderOutcome, error) {
	if s.JobID == "" {
		return nil, api.ErrNoJob
	}
	c, err := e.authed(s)
	if err != nil {
		return nil, err
	}

	s.Orders = make([]OrderOutcome, 0, len(s.Results))
	for i, r := range s.Results {
		if err := ctx.Err(); err != nil {
			return s.Orders, err
		}

		out := e.order(ctx, c, s.JobID, i, r)
		s.Orders = append(s.Orders, out)

		e.metrics.OrderOutcome(out.OK())
		e.eventBus.PublishOrder(i, len(s.Results), r.Filename, out.OrderID, out.Status, out.Err)
		if out.Err != nil {
			if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
				return s.Orders, out.Err
			}
			e.logger.Error().Err(out.Err).Int("index", i).Str("file", r.Filename).Msg("Order failed")
			if stopOnFirstError {
				break
			}
			continue
		}
		e.logger.Info().Int("index", i).Str("order", out.OrderID).Str("file", r.Filename).Msg("Order ready")
	}
	return s.Orders, nil
}

func (e *Engine) order(ctx context.Context, c *api.Client, jobID string, index int, r models.Result) OrderOutcome {
	out := OrderOutcome{Index: index, Result: r, Size: r.Size, Status: models.StatusPending}

	resp, err := c.CreateOrder(ctx, index, jobID, r.URL)
	if err != nil {
		out.Status = models.StatusFailed
		out.Err = err
		return out
	}
	out.OrderID = resp.OrderID

	res, err := poll.Until(ctx, e.policy, "order "+resp.OrderID, func(ctx context.Context) (poll.Observation, error) {
		return observe(c.GetOrderStatus(ctx, resp.OrderID))
	}, e.observer("order"))
	if err != nil {
		var fe *poll.FailedError
		var te *poll.TimeoutError
		switch {
		case errors.As(err, &fe):
			out.Status = models.StatusFailed
		case errors.As(err, &te):
			out.Status = te.LastStatus
		default:
			out.Status = res.Status
		}
		out.Err = err
		return out
	}
	out.Status = res.Status
	return out
}

// DownloadAll streams every completed order of the session into its download
// directory, in result order.
func (e *Engine) DownloadAll(ctx context.Context, s *Session) ([]download.Outcome, error) {
	c, err := e.authed(s)
	if err != nil {
		return nil, err
	}

	d, err := download.New(c, download.Options{
		Dir:          s.DownloadDir,
		Extension:    e.config.Extension,
		NameOverride: e.config.NameOverride,
		Overwrite:    e.config.Overwrite,
	},
		download.WithTracker(e.tracker),
		download.WithMetrics(e.metrics),
		download.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}

	completed := s.CompletedOrders()
	items := make([]download.Item, len(completed))
	for i, o := range completed {
		items[i] = download.Item{Index: o.Index, OrderID: o.OrderID, Result: o.Result, Size: o.Size}
	}

	outcomes := d.DownloadAll(ctx, items)
	for _, o := range outcomes {
		e.eventBus.PublishTransfer(o.Index, o.Path, o.Written, o.Elapsed, o.Err)
	}
	return outcomes, ctx.Err()
}

// Publish copies successful downloads to the configured object store. A failed
// copy is reported in its outcome and leaves the local file in place.
func (e *Engine) Publish(ctx context.Context, downloads []download.Outcome) []cloud.PublishOutcome {
	if e.publisher == nil {
		return nil
	}
	var outcomes []cloud.PublishOutcome
	for _, d := range downloads {
		if !d.OK() {
			continue
		}
		if ctx.Err() != nil {
			outcomes = append(outcomes, cloud.PublishOutcome{Path: d.Path, Err: ctx.Err()})
			continue
		}
		remote, err := e.publisher.Publish(ctx, d.Path)
		outcomes = append(outcomes, cloud.PublishOutcome{Path: d.Path, Remote: remote, Err: err})

		e.metrics.PublishOutcome(e.publisher.Backend(), err == nil)
		e.eventBus.PublishPublish(e.publisher.Backend(), d.Path, remote, err)
		if err != nil {
			e.logger.Error().Err(err).Str("file", d.Path).Msg("Publish failed")
		} else {
			e.logger.Info().Str("file", d.Path).Str("remote", remote).Msg("Published")
		}
	}
	return outcomes
}

// timed runs one step with metrics, events and timing recorded on the report.
func (e *Engine) timed(r *Report, step string, fn func() error) error {
	e.eventBus.PublishStep(step, false, 0, nil)
	start := time.Now()
	err := fn()
	d := time.Since(start)

	r.Durations[step] = d
	e.metrics.StepDuration(step, d)
	e.eventBus.PublishStep(step, true, d, err)
	return err
}
