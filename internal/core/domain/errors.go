package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrCorruptInput       = errors.New("corrupt input")
	ErrServiceRateLimited = errors.New("analysis service rate limited")
	ErrServiceUnavailable = errors.New("analysis service unavailable")
	ErrMalformedResponse  = errors.New("malformed service response")
	ErrAggregationFailure = errors.New("aggregation failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
