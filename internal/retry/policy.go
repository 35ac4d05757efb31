// Package retry provides a bounded retry policy.
//
// A Policy runs an attempt function up to MaxAttempts times, waiting the
// Backoff delay before every attempt after the first. Attempts run strictly
// one after another.
package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff returns the wait before attempt n (n >= 2).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same duration before every retry.
type Fixed time.Duration

// Delay implements Backoff.
func (f Fixed) Delay(int) time.Duration { return time.Duration(f) }

// Exponential doubles Base for every retry, capped at Max when Max > 0.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// Delay implements Backoff.
func (e Exponential) Delay(attempt int) time.Duration {
	d := e.Base
	for i := 2; i < attempt; i++ {
		d *= 2
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

// Default is three attempts with a one second pause between them.
func Default() Policy {
	return Policy{MaxAttempts: 3, Backoff: Fixed(time.Second)}
}

// ErrNoAttempts is returned by Do when the policy allows zero attempts.
var ErrNoAttempts = errors.New("retry policy allows no attempts")

// Do calls fn until it succeeds or the attempts run out, and returns the last
// error. onFailure, when set, sees every failed attempt. Waiting between
// attempts stops early if ctx is done; a running attempt is never interrupted
// by Do itself.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, onFailure func(attempt int, err error)) error {
	if p.MaxAttempts <= 0 {
		return ErrNoAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 && p.Backoff != nil {
			if err := sleep(ctx, p.Backoff.Delay(attempt)); err != nil {
				return lastErr
			}
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if onFailure != nil {
			onFailure(attempt, lastErr)
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
