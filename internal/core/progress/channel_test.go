package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

func drain(t *testing.T, ch *Channel) []domain.ProgressEvent {
	t.Helper()
	sub, err := ch.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	var events []domain.ProgressEvent
	err = sub.Stream(context.Background(), 50*time.Millisecond, func(ev domain.ProgressEvent) error {
		events = append(events, ev)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	return events
}

func TestEmitInterpolatesWithinStageBand(t *testing.T) {
	ch := NewChannel("task-1")
	if err := ch.Emit(domain.StageExtractingBatch, "half", nil, 0.5); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if err := ch.Complete(nil, ""); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	events := drain(t, ch)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Progress != 37.5 {
		t.Fatalf("expected 15 + 45*0.5 = 37.5, got %v", events[0].Progress)
	}
	if events[1].Stage != domain.StageComplete || events[1].Progress != 100 {
		t.Fatalf("unexpected terminal event: %+v", events[1])
	}
}

func TestEmitClampsSubProgress(t *testing.T) {
	ch := NewChannel("task-1")
	_ = ch.Emit(domain.StageClassifying, "over", nil, 4)
	_ = ch.Emit(domain.StageMergingBatches, "under", nil, -1)
	_ = ch.Complete(nil, "")

	events := drain(t, ch)
	if events[0].Progress != 15 {
		t.Fatalf("expected clamp to band end 15, got %v", events[0].Progress)
	}
	if events[1].Progress != 60 {
		t.Fatalf("expected clamp to band start 60, got %v", events[1].Progress)
	}
}

func TestProgressIsMonotonicAndTerminalIsLast(t *testing.T) {
	ch := NewChannel("task-1")
	_ = ch.Emit(domain.StageExtractingBatch, "late", nil, 1)
	_ = ch.Emit(domain.StageLoadingDocuments, "early stage after late one", nil, 0)
	_ = ch.Emit(domain.StageFinalizing, "final", nil, 0.5)
	_ = ch.Complete(map[string]any{"status": "complete"}, "done")

	if err := ch.Emit(domain.StageFinalizing, "after terminal", nil, 1); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed after terminal event, got %v", err)
	}
	if err := ch.Fail(errors.New("late failure")); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected second terminal event to be rejected, got %v", err)
	}

	events := drain(t, ch)
	last := -1.0
	terminals := 0
	for i, ev := range events {
		if ev.Progress < last {
			t.Fatalf("progress decreased at %d: %v < %v", i, ev.Progress, last)
		}
		last = ev.Progress
		if ev.Stage.Terminal() {
			terminals++
			if i != len(events)-1 {
				t.Fatalf("terminal event at %d is not last", i)
			}
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminals)
	}
}

func TestFailEmitsErrorEventWithDetail(t *testing.T) {
	ch := NewChannel("task-1")
	_ = ch.Emit(domain.StageApplyingTaxRules, "reviewing", nil, 0)
	_ = ch.Fail(errors.New("review call failed"))

	events := drain(t, ch)
	final := events[len(events)-1]
	if final.Stage != domain.StageError || final.Progress != 0 {
		t.Fatalf("unexpected error event: %+v", final)
	}
	if final.Detail["error"] != "review call failed" {
		t.Fatalf("expected error detail, got %+v", final.Detail)
	}
}

func TestEmitRejectsTerminalAndUnknownStages(t *testing.T) {
	ch := NewChannel("task-1")
	if err := ch.Emit(domain.StageComplete, "nope", nil, 1); err == nil {
		t.Fatalf("expected error emitting terminal stage")
	}
	if err := ch.Emit(domain.Stage("bogus"), "nope", nil, 1); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestSubscribeAllowsSingleObserver(t *testing.T) {
	ch := NewChannel("task-1")
	if _, err := ch.Subscribe(); err != nil {
		t.Fatalf("first Subscribe() error = %v", err)
	}
	if _, err := ch.Subscribe(); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestUnsubscribeFreesObserverSlot(t *testing.T) {
	ch := NewChannel("task-1")
	_ = ch.Emit(domain.StageInitializing, "start", nil, 0)
	_ = ch.Emit(domain.StageLoadingDocuments, "loaded", nil, 1)

	first, err := ch.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if ev, ok, err := first.Next(context.Background(), 50*time.Millisecond); err != nil || !ok || ev.Stage != domain.StageInitializing {
		t.Fatalf("Next() = %v, %v, %v", ev.Stage, ok, err)
	}
	first.Unsubscribe()
	first.Unsubscribe()
	if ch.Subscribed() {
		t.Fatalf("expected observer slot to be free")
	}

	second, err := ch.Subscribe()
	if err != nil {
		t.Fatalf("resubscribe error = %v", err)
	}
	// A stale subscription must not free the new observer's slot.
	first.Unsubscribe()
	if !ch.Subscribed() {
		t.Fatalf("stale unsubscribe released the active subscriber")
	}
	if ev, ok, _ := second.Next(context.Background(), 50*time.Millisecond); !ok || ev.Stage != domain.StageLoadingDocuments {
		t.Fatalf("expected to resume at loading_documents, got %v ok=%v", ev.Stage, ok)
	}
}

func TestStreamSendsKeepaliveWhileIdle(t *testing.T) {
	ch := NewChannel("task-1")
	sub, _ := ch.Subscribe()

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = ch.Complete(nil, "")
	}()

	keepalives := 0
	var events []domain.ProgressEvent
	err := sub.Stream(context.Background(), 10*time.Millisecond, func(ev domain.ProgressEvent) error {
		events = append(events, ev)
		return nil
	}, func() error {
		keepalives++
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if keepalives == 0 {
		t.Fatalf("expected at least one keepalive")
	}
	if len(events) != 1 || events[0].Stage != domain.StageComplete {
		t.Fatalf("expected only the terminal event, got %+v", events)
	}
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	ch := NewChannel("task-1")
	sub, _ := ch.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sub.Stream(ctx, time.Second, func(domain.ProgressEvent) error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConcurrentProducersKeepFIFOPerProducer(t *testing.T) {
	ch := NewChannel("task-1")
	sub, _ := ch.Subscribe()

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_ = ch.Emit(domain.StageExtractingBatch, "doc", map[string]any{"seq": i}, float64(i)/total)
		}
		_ = ch.Complete(nil, "")
	}()

	seq := 0
	err := sub.Stream(context.Background(), time.Second, func(ev domain.ProgressEvent) error {
		if ev.Stage.Terminal() {
			return nil
		}
		if got := ev.Detail["seq"].(int); got != seq {
			t.Fatalf("expected seq %d, got %d", seq, got)
		}
		seq++
		return nil
	}, nil)
	wg.Wait()
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if seq != total {
		t.Fatalf("expected %d events, got %d", total, seq)
	}
}
