package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/http"
	"github.com/eodata/hdaget/internal/logging"
	"github.com/eodata/hdaget/internal/metrics"
	"github.com/eodata/hdaget/internal/ratelimit"
	"github.com/eodata/hdaget/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// Client talks to one data broker. It is safe for concurrent use; WithToken
// returns a copy that shares the transport, limiter and metrics.
type Client struct {
	httpClient     *nethttp.Client
	downloadClient *nethttp.Client
	config         *config.Config
	baseURL        string
	token          string
	limiter        *ratelimit.RateLimiter
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// WithMetrics records every request on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRateLimiter replaces the limiter built from cfg.RateLimit.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// NewClient creates a broker client. Proxy settings and retry counts come from cfg.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	baseURL := cfg.BaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("broker base URL is empty: %w", config.ErrMissingBrokerURL)
	}

	c := &Client{
		config:  cfg,
		baseURL: baseURL,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	httpClient, err := http.ConfigureHTTPClient(cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	downloadClient, err := http.CreateDownloadClient(cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure download client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = max(cfg.MaxRetries, 0)
	retryClient.RetryWaitMin = constants.APIRetryWaitMin
	retryClient.RetryWaitMax = constants.APIRetryWaitMax
	retryClient.Logger = &retryLogger{logger: c.logger}
	// Hand the last response back so callers can build typed errors from it
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c.httpClient = retryClient.StandardClient()
	c.downloadClient = downloadClient

	if c.limiter == nil && cfg.RateLimit > 0 {
		c.limiter = ratelimit.NewAPIRateLimiter(cfg.RateLimit, c.logger)
	}

	return c, nil
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token, or "" before authentication.
func (c *Client) Token() string { return c.token }

// BaseURL returns the normalized broker URL.
func (c *Client) BaseURL() string { return c.baseURL }

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config { return c.config }

func (c *Client) bearer() (string, error) {
	if c.token == "" {
		return "", ErrNoToken
	}
	return "Bearer " + c.token, nil
}

// doRequest performs a broker call with rate limiting, request ids and metrics.
// auth is the full Authorization header value.
func (c *Client) doRequest(ctx context.Context, op, method, path, auth string, body interface{}) (*nethttp.Response, error) {
	return c.do(ctx, c.httpClient, op, method, path, auth, body)
}

func (c *Client) do(ctx context.Context, hc *nethttp.Client, op, method, path, auth string, body interface{}) (*nethttp.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter cancelled: %w", err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveAPI(op, 0, elapsed)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Error().Str("op", op).Str("request_id", requestID).Err(err).Msgf("API call failed: %s %s", method, path)
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	c.metrics.ObserveAPI(op, resp.StatusCode, elapsed)

	c.logger.Debug().
		Str("op", op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msgf("%s %s", method, path)

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		c.throttled(op, resp)
	}

	return resp, nil
}

// throttled backs the shared limiter off after the broker answered 429.
func (c *Client) throttled(op string, resp *nethttp.Response) {
	retryAfter := resp.Header.Get("Retry-After")
	c.logger.Warn().Str("op", op).Str("retry_after", retryAfter).Msg("THROTTLED: broker rate limit exceeded")
	if c.limiter == nil {
		return
	}
	c.limiter.Drain()
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		c.limiter.SetCooldown(time.Duration(secs) * time.Second)
	}
}

// decodeJSON decodes a successful response body into v.
func decodeJSON(resp *nethttp.Response, op string, v interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func readErrorBody(resp *nethttp.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	return truncateBody(body)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
