package ollama

import (
	"context"
	"errors"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/resilience"
)

const (
	DefaultMaxAttempts = 3

	genericRetryWait = time.Second
)

// AnalysisRetryPolicy waits 2^attempt seconds after a rate limit and one
// second after any other service failure. Everything else fails fast.
func AnalysisRetryPolicy(maxAttempts int, onRetry func(reason string, err error)) resilience.Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return resilience.Policy{
		MaxAttempts: maxAttempts,
		Delay: func(attempt int, err error) (time.Duration, bool) {
			wait, ok := analysisDelay(attempt, err)
			if ok && onRetry != nil {
				onRetry(retryReason(err), err)
			}
			return wait, ok
		},
	}
}

func analysisDelay(attempt int, err error) (time.Duration, bool) {
	switch {
	case domain.IsKind(err, domain.ErrServiceRateLimited):
		return time.Duration(1<<attempt) * time.Second, true
	case domain.IsKind(err, domain.ErrServiceUnavailable), resilience.IsCircuitOpen(err):
		return genericRetryWait, true
	default:
		return 0, false
	}
}

func retryReason(err error) string {
	if domain.IsKind(err, domain.ErrServiceRateLimited) {
		return "rate_limited"
	}
	return "unavailable"
}

func classifyAnalysisError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if domain.IsKind(err, domain.ErrServiceRateLimited) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: false,
		}
	}
	if domain.IsKind(err, domain.ErrServiceUnavailable) || resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: false,
	}
}

// normalizeServiceError gives an open breaker the same kind as an outage.
func normalizeServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsCircuitOpen(err) && !domain.IsKind(err, domain.ErrServiceUnavailable) {
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama "+operation, err)
	}
	return err
}
