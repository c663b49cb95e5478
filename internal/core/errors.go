package core

import "fmt"

// OrderError aborts a run at the first failed order. Err is the underlying
// api.SubmissionError, poll.FailedError or poll.TimeoutError.
type OrderError struct {
	Index    int
	Filename string
	OrderID  string
	Err      error
}

func (e *OrderError) Error() string {
	name := e.Filename
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("order for result %d (%s) failed: %v", e.Index, name, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }
