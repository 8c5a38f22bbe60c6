package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

func TestReviewCompletedRoundTrip(t *testing.T) {
	finished := time.Date(2025, 6, 1, 10, 0, 0, 0, time.FixedZone("NZST", 12*3600))
	verdict := domain.ReviewVerdict{
		Status:            domain.ReviewBlocked,
		CompletenessScore: 0.4,
		BlockingIssues:    []string{"Missing settlement statement"},
	}

	payload, err := encodeReviewCompleted("task-1", verdict, finished)
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	got, err := decodeReviewCompleted(payload)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	want := ReviewCompleted{TaskID: "task-1", Verdict: verdict, FinishedAt: finished.UTC()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeReviewCompletedRejectsMissingTaskID(t *testing.T) {
	if _, err := decodeReviewCompleted([]byte(`{"verdict":{"status":"complete"}}`)); err == nil {
		t.Fatalf("expected error for missing task id")
	}
	if _, err := decodeReviewCompleted([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestPublishErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		temporary bool
		invalid   bool
	}{
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), temporary: true},
		{name: "reconnecting", err: nats.ErrConnectionReconnecting, temporary: true},
		{name: "circuit open", err: gobreaker.ErrOpenState, temporary: true},
		{name: "bad subject", err: nats.ErrBadSubject, invalid: true},
		{name: "payload too large", err: fmt.Errorf("nats publish: %w", nats.ErrMaxPayload), invalid: true},
		{name: "cancelled", err: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := publishError("task-9", tt.err)
			if got := domain.IsKind(err, domain.ErrTemporary); got != tt.temporary {
				t.Fatalf("temporary = %v, want %v (err %v)", got, tt.temporary, err)
			}
			if got := domain.IsKind(err, domain.ErrInvalidInput); got != tt.invalid {
				t.Fatalf("invalid = %v, want %v (err %v)", got, tt.invalid, err)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("original error lost: %v", err)
			}
			if (tt.temporary || tt.invalid) && !strings.Contains(err.Error(), "task=task-9") {
				t.Fatalf("expected task id in %q", err)
			}
		})
	}
}

func TestRejectedNotificationsDoNotTripBreaker(t *testing.T) {
	class := classifyPublishError(nats.ErrMaxPayload)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("oversized payload should be permanent and ignored by the breaker, got %+v", class)
	}
	class = classifyPublishError(nats.ErrNoServers)
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("broker outage should retry and count, got %+v", class)
	}
}
