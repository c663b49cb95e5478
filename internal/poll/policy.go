// Package poll waits on broker jobs and orders with a bounded, backing-off
// status loop.
package poll

import (
	"math"
	"time"

	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/constants"
)

// Policy bounds a status wait.
//
// The first FastAttempts polls run back to back. After that the sleep before
// poll k (0-based among the slow polls) is min(MaxInterval, Interval*Multiplier^k).
// The wait ends with a TimeoutError after MaxAttempts polls or Timeout, whichever
// comes first; zero disables either bound but not both.
type Policy struct {
	FastAttempts         int
	Interval             time.Duration
	Multiplier           float64
	MaxInterval          time.Duration
	MaxAttempts          int
	Timeout              time.Duration
	MaxConsecutiveErrors int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		FastAttempts:         constants.PollFastAttempts,
		Interval:             constants.PollInterval,
		Multiplier:           constants.PollMultiplier,
		MaxInterval:          constants.PollMaxInterval,
		Timeout:              constants.PollTimeout,
		MaxConsecutiveErrors: constants.PollMaxConsecutiveErrors,
	}
}

// FromConfig converts the [poll] config section.
func FromConfig(pc config.PollConfig) Policy {
	return Policy{
		FastAttempts:         pc.FastAttempts,
		Interval:             pc.Interval,
		Multiplier:           pc.Multiplier,
		MaxInterval:          pc.MaxInterval,
		MaxAttempts:          pc.MaxAttempts,
		Timeout:              pc.Timeout,
		MaxConsecutiveErrors: pc.MaxConsecutiveErrors,
	}
}

// Delay returns the sleep after the given number of completed polls.
func (p Policy) Delay(completed int) time.Duration {
	if completed < p.FastAttempts || p.Interval <= 0 {
		return 0
	}
	k := completed - max(p.FastAttempts, 0)
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.Interval) * math.Pow(mult, float64(k))
	if p.MaxInterval > 0 && (d > float64(p.MaxInterval) || math.IsInf(d, 1)) {
		return p.MaxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// bounded reports whether the policy can ever give up.
func (p Policy) bounded() bool {
	return p.MaxAttempts > 0 || p.Timeout > 0
}
