package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eodata/hdaget/internal/http"
	"github.com/eodata/hdaget/internal/models"
)

// Observation is one status reading.
type Observation struct {
	Status  models.Status
	Message string
}

// CheckFunc reads the current status once.
type CheckFunc func(ctx context.Context) (Observation, error)

// Attempt describes one finished poll, passed to observers.
type Attempt struct {
	Op      string
	N       int
	Status  models.Status
	Err     error
	Elapsed time.Duration
	Next    time.Duration
}

// Result summarizes a successful wait.
type Result struct {
	Attempts int
	Status   models.Status
	Elapsed  time.Duration
}

// Until polls check until it reports completed, reports failed, or the
// policy runs out. observe may be nil.
//
// Check errors count as attempts. A credential error, or one wrapped with
// Permanent, ends the wait immediately; other errors end it after
// MaxConsecutiveErrors in a row.
func Until(ctx context.Context, p Policy, op string, check CheckFunc, observe func(Attempt)) (Result, error) {
	if !p.bounded() {
		return Result{}, fmt.Errorf("%s: poll policy has neither max attempts nor timeout", op)
	}

	start := time.Now()
	last := models.StatusPending
	var lastErr error
	consecutive := 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		obs, err := check(ctx)
		elapsed := time.Since(start)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			lastErr = err
			consecutive++
			if isPermanent(err) || http.ClassifyError(err) == http.ErrorTypeCredential {
				notify(observe, Attempt{Op: op, N: attempt, Status: last, Err: err, Elapsed: elapsed})
				var pe *permanentError
				if errors.As(err, &pe) {
					err = pe.err
				}
				return Result{}, fmt.Errorf("%s: %w", op, err)
			}
			if p.MaxConsecutiveErrors > 0 && consecutive >= p.MaxConsecutiveErrors {
				notify(observe, Attempt{Op: op, N: attempt, Status: last, Err: err, Elapsed: elapsed})
				return Result{}, fmt.Errorf("%s: %d consecutive status errors: %w", op, consecutive, err)
			}
		} else {
			consecutive = 0
			lastErr = nil
			last = obs.Status
			switch obs.Status {
			case models.StatusCompleted:
				notify(observe, Attempt{Op: op, N: attempt, Status: last, Elapsed: elapsed})
				return Result{Attempts: attempt, Status: last, Elapsed: elapsed}, nil
			case models.StatusFailed:
				notify(observe, Attempt{Op: op, N: attempt, Status: last, Elapsed: elapsed})
				return Result{}, &FailedError{Op: op, Attempts: attempt, Message: obs.Message}
			}
		}

		timeout := &TimeoutError{Op: op, Attempts: attempt, Elapsed: elapsed, LastStatus: last, LastErr: lastErr}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			notify(observe, Attempt{Op: op, N: attempt, Status: last, Err: err, Elapsed: elapsed})
			return Result{}, timeout
		}

		delay := p.Delay(attempt)
		if p.Timeout > 0 {
			remaining := p.Timeout - elapsed
			if remaining <= 0 {
				notify(observe, Attempt{Op: op, N: attempt, Status: last, Err: err, Elapsed: elapsed})
				return Result{}, timeout
			}
			delay = min(delay, remaining)
		}
		notify(observe, Attempt{Op: op, N: attempt, Status: last, Err: err, Elapsed: elapsed, Next: delay})

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Result{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func notify(observe func(Attempt), a Attempt) {
	if observe != nil {
		observe(a)
	}
}
