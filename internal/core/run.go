package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/download"
	"github.com/eodata/hdaget/internal/models"
)

// Step names used in reports, metrics and events.
const (
	StepToken    = "token"
	StepTerms    = "terms"
	StepSubmit   = "submit"
	StepAwait    = "await"
	StepList     = "list"
	StepOrders   = "orders"
	StepDownload = "download"
	StepPublish  = "publish"
)

// RunOptions controls how far a run goes and how it reacts to failed orders.
type RunOptions struct {
	// ContinueOnError downloads the successful subset when some orders fail.
	// By default the run stops at the first failed order with an *OrderError.
	ContinueOnError bool

	// ListOnly stops after listing results.
	ListOnly bool
}

// Report is everything a run produced.
type Report struct {
	JobID     string
	Results   []models.Result
	Orders    []OrderOutcome
	Downloads []download.Outcome
	Published []cloud.PublishOutcome
	Durations map[string]time.Duration
	Elapsed   time.Duration
}

// FailedOrders returns the orders that did not complete.
func (r *Report) FailedOrders() []OrderOutcome {
	var failed []OrderOutcome
	for _, o := range r.Orders {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// FailedDownloads returns the transfers that did not complete.
func (r *Report) FailedDownloads() []download.Outcome {
	var failed []download.Outcome
	for _, d := range r.Downloads {
		if !d.OK() {
			failed = append(failed, d)
		}
	}
	return failed
}

// Bytes returns the total bytes written by successful downloads.
func (r *Report) Bytes() int64 {
	var n int64
	for _, d := range r.Downloads {
		if d.OK() {
			n += d.Written
		}
	}
	return n
}

// HasFailures reports whether any order, download or publish failed.
func (r *Report) HasFailures() bool {
	if len(r.FailedOrders()) > 0 || len(r.FailedDownloads()) > 0 {
		return true
	}
	for _, p := range r.Published {
		if p.Err != nil {
			return true
		}
	}
	return false
}

// Run chains the steps for one session. With a nil query the session JobID
// must already be set, and the run resumes at waiting for that job.
//
// The report is returned even on error and holds whatever finished.
func (e *Engine) Run(ctx context.Context, s *Session, query json.RawMessage, opts RunOptions) (*Report, error) {
	start := time.Now()
	r := &Report{Durations: make(map[string]time.Duration)}
	defer func() { r.Elapsed = time.Since(start) }()

	if s.Token == "" {
		if err := e.timed(r, StepToken, func() error { return e.GetToken(ctx, s) }); err != nil {
			return r, err
		}
	}
	if err := e.timed(r, StepTerms, func() error { return e.EnsureTermsAccepted(ctx, s) }); err != nil {
		return r, err
	}

	if query != nil {
		if err := e.timed(r, StepSubmit, func() error { return e.SubmitJob(ctx, s, query) }); err != nil {
			return r, err
		}
	}
	r.JobID = s.JobID

	if err := e.timed(r, StepAwait, func() error {
		_, err := e.AwaitJob(ctx, s)
		return err
	}); err != nil {
		return r, err
	}

	if err := e.timed(r, StepList, func() error {
		_, err := e.ListResults(ctx, s)
		return err
	}); err != nil {
		return r, err
	}
	r.Results = s.Results
	if opts.ListOnly || len(s.Results) == 0 {
		return r, nil
	}

	err := e.timed(r, StepOrders, func() error {
		_, err := e.RequestOrders(ctx, s, !opts.ContinueOnError)
		return err
	})
	r.Orders = s.Orders
	if err != nil {
		return r, err
	}
	if !opts.ContinueOnError {
		if failed := r.FailedOrders(); len(failed) > 0 {
			f := failed[0]
			return r, &OrderError{Index: f.Index, Filename: f.Result.Filename, OrderID: f.OrderID, Err: f.Err}
		}
	}

	err = e.timed(r, StepDownload, func() error {
		var err error
		r.Downloads, err = e.DownloadAll(ctx, s)
		return err
	})
	if err != nil {
		return r, err
	}
	if failed := r.FailedDownloads(); len(failed) > 0 && !opts.ContinueOnError {
		return r, failed[0].Err
	}

	if e.publisher != nil {
		_ = e.timed(r, StepPublish, func() error {
			r.Published = e.Publish(ctx, r.Downloads)
			for _, p := range r.Published {
				if p.Err != nil {
					return errors.New("one or more files failed to publish")
				}
			}
			return nil
		})
	}
	return r, nil
}
