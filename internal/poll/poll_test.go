package poll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eodata/hdaget/internal/models"
)

// fastPolicy never sleeps for long so tests stay quick.
func fastPolicy() Policy {
	return Policy{
		FastAttempts:         3,
		Interval:             time.Millisecond,
		Multiplier:           1.5,
		MaxInterval:          5 * time.Millisecond,
		Timeout:              5 * time.Second,
		MaxConsecutiveErrors: 3,
	}
}

func statusSequence(final models.Status, n int, calls *int) CheckFunc {
	return func(ctx context.Context) (Observation, error) {
		*calls++
		if *calls >= n {
			return Observation{Status: final, Message: "broker says so"}, nil
		}
		return Observation{Status: models.StatusRunning}, nil
	}
}

func TestDelay(t *testing.T) {
	p := Policy{FastAttempts: 2, Interval: time.Second, Multiplier: 2, MaxInterval: 5 * time.Second}
	tests := []struct {
		completed int
		want      time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{500, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.completed); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.completed, got, tt.want)
		}
	}

	flat := Policy{Interval: time.Second, Multiplier: 0.5}
	if got := flat.Delay(10); got != time.Second {
		t.Errorf("multiplier below 1 must not shrink the interval, got %v", got)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.FastAttempts != 20 || p.Interval != 5*time.Second || p.Multiplier != 1.5 ||
		p.MaxInterval != time.Minute || p.Timeout != time.Hour || p.MaxConsecutiveErrors != 5 {
		t.Errorf("unexpected default policy %+v", p)
	}
}

func TestUntilCompletesOnNthPoll(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			calls := 0
			res, err := Until(context.Background(), fastPolicy(), "job", statusSequence(models.StatusCompleted, n, &calls), nil)
			if err != nil {
				t.Fatal(err)
			}
			if calls != n || res.Attempts != n {
				t.Errorf("calls=%d attempts=%d, want %d", calls, res.Attempts, n)
			}
			if res.Status != models.StatusCompleted {
				t.Errorf("status = %s", res.Status)
			}
		})
	}
}

func TestUntilFailed(t *testing.T) {
	calls := 0
	_, err := Until(context.Background(), fastPolicy(), "order", statusSequence(models.StatusFailed, 2, &calls), nil)
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}
	if failed.Attempts != 2 || failed.Message != "broker says so" {
		t.Errorf("unexpected FailedError %+v", failed)
	}
}

func TestUntilMaxAttempts(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 4

	calls := 0
	_, err := Until(context.Background(), p, "job", statusSequence(models.StatusCompleted, 1000, &calls), nil)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if calls != 4 || timeout.Attempts != 4 || timeout.LastStatus != models.StatusRunning {
		t.Errorf("calls=%d timeout=%+v", calls, timeout)
	}
}

func TestUntilDeadline(t *testing.T) {
	p := Policy{Interval: 10 * time.Millisecond, Multiplier: 1, Timeout: 100 * time.Millisecond}

	start := time.Now()
	calls := 0
	_, err := Until(context.Background(), p, "job", statusSequence(models.StatusCompleted, 1<<30, &calls), nil)
	elapsed := time.Since(start)

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("deadline not honoured, took %v", elapsed)
	}
	if calls < 2 {
		t.Errorf("expected several polls before the deadline, got %d", calls)
	}
}

func TestUntilUnboundedPolicyRejected(t *testing.T) {
	_, err := Until(context.Background(), Policy{Interval: time.Millisecond}, "job", nil, nil)
	if err == nil {
		t.Fatal("expected error for policy without bounds")
	}
}

func TestUntilContextCancelledDuringSleep(t *testing.T) {
	p := Policy{Interval: 10 * time.Second, Timeout: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	calls := 0
	_, err := Until(ctx, p, "job", statusSequence(models.StatusCompleted, 1000, &calls), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancel did not interrupt the sleep")
	}
}

func TestUntilTransientErrors(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		calls := 0
		check := func(ctx context.Context) (Observation, error) {
			calls++
			switch calls {
			case 1, 2:
				return Observation{}, errors.New("connection reset by peer")
			case 3:
				return Observation{}, fmt.Errorf("parse: %w", models.ErrUnknownStatus)
			}
			return Observation{Status: models.StatusCompleted}, nil
		}
		p := fastPolicy()
		p.MaxConsecutiveErrors = 5
		res, err := Until(context.Background(), p, "job", check, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Attempts != 4 {
			t.Errorf("errors must count as attempts: got %d", res.Attempts)
		}
	})

	t.Run("gives up after consecutive errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("i/o timeout")
		check := func(ctx context.Context) (Observation, error) {
			calls++
			return Observation{}, boom
		}
		_, err := Until(context.Background(), fastPolicy(), "job", check, nil)
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped boom, got %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent stops at once", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("no token")
		check := func(ctx context.Context) (Observation, error) {
			calls++
			return Observation{}, Permanent(sentinel)
		}
		_, err := Until(context.Background(), fastPolicy(), "job", check, nil)
		if !errors.Is(err, sentinel) || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})
}

func TestUntilObserver(t *testing.T) {
	var seen []Attempt
	calls := 0
	_, err := Until(context.Background(), fastPolicy(), "order", statusSequence(models.StatusCompleted, 5, &calls), func(a Attempt) {
		seen = append(seen, a)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 5 {
		t.Fatalf("observer saw %d attempts, want 5", len(seen))
	}
	for i, a := range seen {
		if a.N != i+1 || a.Op != "order" {
			t.Errorf("attempt %d = %+v", i, a)
		}
	}
	if seen[0].Next != 0 || seen[3].Next == 0 {
		t.Errorf("expected fast polls first then sleeps: %v / %v", seen[0].Next, seen[3].Next)
	}
}
