// Package ratelimit provides client-side throttling for broker API calls using a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/logging"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens        float64
	maxTokens     float64
	refillRate    float64
	lastRefill    time.Time
	cooldownUntil time.Time // set from 429 Retry-After; Wait blocks until it passes
	lastWarnTime  time.Time
	logger        *logging.Logger
	mu            sync.Mutex
}

// NewRateLimiter creates a limiter that starts with a full bucket.
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
		logger:     logging.NewNopLogger(),
	}
}

// NewAPIRateLimiter creates the limiter shared by all calls against one broker.
// A non-positive rate selects constants.APIRatePerSec.
//
// The broker publishes no hard quota; the default keeps a long pagination or
// a large order batch from hammering it while still allowing a short burst
// at startup (token, terms, submit, first status polls).
func NewAPIRateLimiter(rate float64, logger *logging.Logger) *RateLimiter {
	if rate <= 0 {
		rate = constants.APIRatePerSec
	}
	rl := NewRateLimiter(rate, constants.APIBurstCapacity)
	rl.logger = logging.OrNop(logger)
	return rl
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	if d := rl.CooldownRemaining(); d > 0 {
		rl.warn(d, "broker asked to back off")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	if rl.tryAcquire() {
		return nil
	}

	if waitTime := rl.timeUntilNextToken(); waitTime > constants.RateLimitWarningThreshold {
		rl.warn(waitTime, "waiting for API capacity")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			if actualWait := time.Since(startTime); actualWait > 5*time.Second {
				rl.logger.Debugf("Rate limit wait completed after %.1fs", actualWait.Seconds())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.timeUntilNextToken()):
		}
	}
}

// warn logs at most once per constants.RateLimitWarningInterval.
func (rl *RateLimiter) warn(d time.Duration, reason string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.lastWarnTime) <= constants.RateLimitWarningInterval {
		return
	}
	rl.lastWarnTime = time.Now()
	rl.logger.Warnf("Rate limited: %s, waiting ~%.1fs", reason, d.Seconds())
}

// tryAcquire attempts to acquire one token without blocking.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}
	return time.Duration(tokensNeeded / rl.refillRate * float64(time.Second))
}

// Drain empties the bucket so the next call waits for a refill.
// Called after the broker answers 429.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.lastRefill = time.Now()
}

// SetCooldown blocks all callers for d. A shorter cooldown never cuts an
// active longer one.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns the time left on the active cooldown, or zero.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if d := time.Until(rl.cooldownUntil); d > 0 {
		return d
	}
	return 0
}
