// Package metrics collects Prometheus metrics for one hdaget run and can push
// them to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every metric name.
const Namespace = "hdaget"

// Metrics holds the collectors for one pipeline run. A nil *Metrics is valid
// and records nothing, so library callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests    *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
	pollAttempts   *prometheus.CounterVec
	ordersTotal    *prometheus.CounterVec
	downloadsTotal *prometheus.CounterVec
	downloadBytes  prometheus.Counter
	fileSizeBytes  prometheus.Histogram
	stepDuration   *prometheus.HistogramVec
	publishTotal   *prometheus.CounterVec
}

// New creates the collectors on a private registry. Runs are short-lived CLI
// invocations, so nothing is registered on the default registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_requests_total",
			Help:      "Broker API requests by endpoint and HTTP status code.",
		},
		[]string{"endpoint", "code"},
	)

	m.apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Broker API request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	m.pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poll_attempts_total",
			Help:      "Status polls issued while waiting on jobs and orders.",
		},
		[]string{"op"},
	)

	m.ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "orders_total",
			Help:      "Order outcomes by result.",
		},
		[]string{"outcome"},
	)

	m.downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "downloads_total",
			Help:      "Download outcomes by result.",
		},
		[]string{"outcome"},
	)

	m.downloadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "download_bytes_total",
		Help:      "Bytes written to local storage.",
	})

	// 1KB .. 10GB
	m.fileSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "file_size_bytes",
		Help:      "Sizes of downloaded files.",
		Buckets:   prometheus.ExponentialBuckets(1024, 10, 8),
	})

	m.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"step"},
	)

	m.publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "publish_total",
			Help:      "Object-storage publish outcomes by backend.",
		},
		[]string{"backend", "outcome"},
	)

	m.registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.pollAttempts,
		m.ordersTotal,
		m.downloadsTotal,
		m.downloadBytes,
		m.fileSizeBytes,
		m.stepDuration,
		m.publishTotal,
	)
	return m
}

// Registry exposes the private registry, mainly for tests and pushing.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAPI records one broker request. code 0 means the transport failed.
func (m *Metrics) ObserveAPI(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// PollAttempt counts one status poll for op ("job" or "order").
func (m *Metrics) PollAttempt(op string) {
	if m == nil {
		return
	}
	m.pollAttempts.WithLabelValues(op).Inc()
}

// OrderOutcome records "completed" or "failed" for one order.
func (m *Metrics) OrderOutcome(ok bool) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(outcome(ok)).Inc()
}

// DownloadOutcome records one file transfer.
func (m *Metrics) DownloadOutcome(ok bool, written int64) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(outcome(ok)).Inc()
	if written > 0 {
		m.downloadBytes.Add(float64(written))
	}
	if ok {
		m.fileSizeBytes.Observe(float64(written))
	}
}

// StepDuration records the wall time of a pipeline step.
func (m *Metrics) StepDuration(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// PublishOutcome records one object-storage upload.
func (m *Metrics) PublishOutcome(backend string, ok bool) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(backend, outcome(ok)).Inc()
}

// Push sends every collected metric to a Pushgateway under the given job name.
// An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if job == "" {
		job = Namespace
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "completed"
	}
	return "failed"
}
