// Package api provides error types for broker API responses.
package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoToken is returned by authenticated calls made before GetToken succeeded.
	ErrNoToken = errors.New("no access token: call GetToken first")
	// ErrNoJob is returned by job status and result calls without a job id.
	ErrNoJob = errors.New("no job id: submit a job first")
)

// maxErrorBody caps how much of a response body an error keeps.
const maxErrorBody = 512

// AuthError is returned when the token or terms endpoints reject a request.
type AuthError struct {
	Op     string
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: status %d%s", e.Op, e.Status, bodySuffix(e.Body))
}

// HTTPStatus returns the response status code.
func (e *AuthError) HTTPStatus() int { return e.Status }

// SubmissionError is returned when the broker refuses a job or an order.
// Index is the result position for orders and -1 for jobs.
type SubmissionError struct {
	Op     string
	Index  int
	Status int
	Body   string
	Err    error
}

func (e *SubmissionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " [item %d]", e.Index)
	}
	b.WriteString(": submission failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	b.WriteString(bodySuffix(e.Body))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// HTTPStatus returns the response status code, 0 when the failure was not an HTTP response.
func (e *SubmissionError) HTTPStatus() int { return e.Status }

// APIError covers any other non-2xx response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: status %d%s", e.Op, e.Status, bodySuffix(e.Body))
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int { return e.Status }

// IsAuthError reports whether err is, or wraps, an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err carries an HTTP 404 from the broker.
func IsNotFound(err error) bool {
	var sc interface{ HTTPStatus() int }
	return errors.As(err, &sc) && sc.HTTPStatus() == 404
}

func bodySuffix(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return ": " + body
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
