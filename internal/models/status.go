// Package models defines the broker wire types and the job/order status enum.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a broker job or order.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrUnknownStatus is wrapped by ParseStatus for strings outside the known vocabulary.
var ErrUnknownStatus = errors.New("unknown status")

// brokerStatuses maps every status spelling the broker is known to send.
var brokerStatuses = map[string]Status{
	"queued":      StatusPending,
	"pending":     StatusPending,
	"accepted":    StatusPending,
	"started":     StatusRunning,
	"running":     StatusRunning,
	"in_progress": StatusRunning,
	"inprogress":  StatusRunning,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
	"failed":      StatusFailed,
	"error":       StatusFailed,
	"aborted":     StatusFailed,
}

// ParseStatus maps a broker status string onto Status. Matching is
// case-insensitive. Anything unrecognised is an error, never a guess.
func ParseStatus(s string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if st, ok := brokerStatuses[key]; ok {
		return st, nil
	}
	return StatusPending, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseStatus.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
