package retry

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy retries an operation a bounded number of times with a fixed pause between attempts.
// The pause blocks the calling goroutine.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable reports whether a failed attempt may be repeated. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is invoked after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
	Sleep   Sleeper
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// Do runs fn until it succeeds, a non-retryable error is returned, the attempts are exhausted
// or ctx is cancelled. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	b := &backoff.Backoff{
		Min:    p.Delay,
		Max:    p.Delay,
		Factor: 1,
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Delay <= 0 {
			continue
		}
		if sleepErr := sleep(ctx, b.Duration()); sleepErr != nil {
			return err
		}
	}
	return err
}

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
