package poll

import (
	"errors"
	"fmt"
	"time"

	"github.com/eodata/hdaget/internal/models"
)

// TimeoutError is returned when a wait exhausts its attempts or deadline
// before reaching a terminal status.
type TimeoutError struct {
	Op         string
	Attempts   int
	Elapsed    time.Duration
	LastStatus models.Status
	LastErr    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %d attempts in %s (last status %s)",
		e.Op, e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastStatus)
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.LastErr }

// FailedError is returned when the broker reports the failed status.
type FailedError struct {
	Op       string
	Attempts int
	Message  string
}

func (e *FailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: broker reported failure: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: broker reported failure", e.Op)
}

// permanentError marks a check error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Until returns it at once instead of counting it
// against MaxConsecutiveErrors.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
