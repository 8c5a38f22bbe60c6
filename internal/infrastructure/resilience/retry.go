package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DelayFunc decides whether a failed attempt (0-based) is retried and how
// long to wait before the next one.
type DelayFunc func(attempt int, err error) (time.Duration, bool)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy bounds a retry loop around a single call.
type Policy struct {
	MaxAttempts int
	Delay       DelayFunc
}

func TimerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn until it succeeds, the policy declines to retry, or the
// attempts are exhausted. The last error is returned unchanged.
func Retry(ctx context.Context, operation string, policy Policy, sleep Sleeper, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = TimerSleep
	}

	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == policy.MaxAttempts-1 || policy.Delay == nil {
			return err
		}

		wait, retry := policy.Delay(attempt, err)
		if !retry {
			return err
		}
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", policy.MaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
	return err
}

// ExponentialDelay is the classifier-driven backoff used by Execute.
func ExponentialDelay(cfg Config, classifier ErrorClassifier) DelayFunc {
	cfg = cfg.normalize()
	return func(attempt int, err error) (time.Duration, bool) {
		if !classifier(err).Retryable {
			return 0, false
		}
		wait := cfg.RetryInitialBackoff
		for i := 0; i < attempt; i++ {
			wait = time.Duration(float64(wait) * cfg.RetryMultiplier)
			if wait >= cfg.RetryMaxBackoff {
				return cfg.RetryMaxBackoff, true
			}
		}
		if wait > cfg.RetryMaxBackoff {
			wait = cfg.RetryMaxBackoff
		}
		return wait, true
	}
}
