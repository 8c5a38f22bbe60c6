// Package progress maps pipeline milestones onto a monotonic 0-100 event
// stream delivered to a single pull-based subscriber.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
)

const DefaultIdleTimeout = 30 * time.Second

var (
	ErrChannelClosed     = errors.New("progress channel closed")
	ErrAlreadySubscribed = errors.New("progress channel already has a subscriber")
	ErrUnknownStage      = errors.New("unknown progress stage")
)

// Channel is the per-task event queue. One producer emits, one subscriber
// drains; the queue is strict FIFO and ends with exactly one terminal event.
type Channel struct {
	taskID string
	now    func() time.Time
	signal chan struct{}

	mu         sync.Mutex
	queue      []domain.ProgressEvent
	last       float64
	closed     bool
	closedAt   time.Time
	subscribed bool
}

func NewChannel(taskID string) *Channel {
	return newChannel(taskID, time.Now)
}

func newChannel(taskID string, now func() time.Time) *Channel {
	return &Channel{
		taskID: taskID,
		now:    now,
		signal: make(chan struct{}, 1),
	}
}

func (c *Channel) TaskID() string {
	return c.taskID
}

// Emit enqueues a non-terminal event whose progress is interpolated inside
// the stage band by subProgress (clamped to [0,1]).
func (c *Channel) Emit(stage domain.Stage, message string, detail map[string]any, subProgress float64) error {
	band, ok := stage.Band()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	if stage.Terminal() {
		return fmt.Errorf("emit %s: terminal stages go through Complete or Fail", stage)
	}

	progress := band.Start + (band.End-band.Start)*clamp01(subProgress)
	return c.enqueue(domain.ProgressEvent{
		TaskID:   c.taskID,
		Stage:    stage,
		Progress: progress,
		Message:  message,
		Detail:   detail,
	})
}

func (c *Channel) Complete(detail map[string]any, message string) error {
	if message == "" {
		message = "Review complete"
	}
	return c.enqueue(domain.ProgressEvent{
		TaskID:   c.taskID,
		Stage:    domain.StageComplete,
		Progress: 100,
		Message:  message,
		Detail:   detail,
	})
}

func (c *Channel) Fail(err error) error {
	description := "unknown error"
	if err != nil {
		description = err.Error()
	}
	return c.enqueue(domain.ProgressEvent{
		TaskID:   c.taskID,
		Stage:    domain.StageError,
		Progress: 0,
		Message:  "Review failed",
		Detail:   map[string]any{"error": description},
	})
}

func (c *Channel) enqueue(ev domain.ProgressEvent) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}

	ev.Timestamp = c.now().UTC()
	if ev.Stage != domain.StageError {
		if ev.Progress < c.last {
			ev.Progress = c.last
		}
		c.last = ev.Progress
	}

	// The terminal event must be queued before the channel reads as closed.
	c.queue = append(c.queue, ev)
	if ev.Stage.Terminal() {
		c.closed = true
		c.closedAt = ev.Timestamp
	}
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
	return nil
}

// Closed reports whether a terminal event has been enqueued.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ClosedAt returns when the terminal event was enqueued.
func (c *Channel) ClosedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedAt, c.closed
}

// Drained reports a closed channel with nothing left to deliver.
func (c *Channel) Drained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed && len(c.queue) == 0
}

func (c *Channel) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Subscribe claims the single observer slot of the channel.
func (c *Channel) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return nil, ErrAlreadySubscribed
	}
	c.subscribed = true
	return &Subscription{ch: c}, nil
}

func (c *Channel) pop() (domain.ProgressEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return domain.ProgressEvent{}, false
	}
	ev := c.queue[0]
	c.queue[0] = domain.ProgressEvent{}
	c.queue = c.queue[1:]
	return ev, true
}

type Subscription struct {
	ch       *Channel
	released bool
}

// Unsubscribe frees the observer slot so a reconnecting client can resume
// from the next undelivered event. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.ch.subscribed = false
}

// Next waits up to timeout for the next event. ok is false when the wait
// timed out without an event.
func (s *Subscription) Next(ctx context.Context, timeout time.Duration) (ev domain.ProgressEvent, ok bool, err error) {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if ev, ok := s.ch.pop(); ok {
			return ev, true, nil
		}
		select {
		case <-s.ch.signal:
		case <-timer.C:
			return domain.ProgressEvent{}, false, nil
		case <-ctx.Done():
			return domain.ProgressEvent{}, false, ctx.Err()
		}
	}
}

// Stream delivers events in order until the terminal event. Each idle
// timeout produces a keepalive; a closed and drained channel ends the stream.
func (s *Subscription) Stream(
	ctx context.Context,
	idle time.Duration,
	onEvent func(domain.ProgressEvent) error,
	onKeepalive func() error,
) error {
	for {
		ev, ok, err := s.Next(ctx, idle)
		if err != nil {
			return err
		}
		if !ok {
			if onKeepalive != nil {
				if err := onKeepalive(); err != nil {
					return err
				}
			}
			if s.ch.Drained() {
				return nil
			}
			continue
		}

		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Stage.Terminal() {
			return nil
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
