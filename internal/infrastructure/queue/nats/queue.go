package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/core/domain"
	"github.com/MitchWo/Property-Tax-Return-Automation-sub001/internal/infrastructure/resilience"
)

const DefaultSubject = "reviews.completed"

// ReviewCompleted is the message body published when a review run finishes.
type ReviewCompleted struct {
	TaskID     string               `json:"task_id"`
	Verdict    domain.ReviewVerdict `json:"verdict"`
	FinishedAt time.Time            `json:"finished_at"`
}

type Notifier struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Notifier, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("property-tax-review"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		now:      time.Now,
	}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *Notifier) PublishReviewCompleted(ctx context.Context, taskID string, verdict domain.ReviewVerdict) error {
	payload, err := encodeReviewCompleted(taskID, verdict, n.now())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Execute(ctx, publishOperation, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(taskID, err)
	}
	return nil
}

// SubscribeReviewCompleted delivers finished reviews to handler until ctx is
// cancelled, then drains the subscription.
func (n *Notifier) SubscribeReviewCompleted(ctx context.Context, handler func(context.Context, ReviewCompleted) error) error {
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeReviewCompleted(msg.Data)
		if err != nil {
			slog.Warn("review_completed_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("review_completed_handler_failed", "task_id", event.TaskID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeReviewCompleted(taskID string, verdict domain.ReviewVerdict, finishedAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(ReviewCompleted{TaskID: taskID, Verdict: verdict, FinishedAt: finishedAt.UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal review completed: %w", err)
	}
	return payload, nil
}

func decodeReviewCompleted(data []byte) (ReviewCompleted, error) {
	var event ReviewCompleted
	if err := json.Unmarshal(data, &event); err != nil {
		return ReviewCompleted{}, fmt.Errorf("unmarshal review completed: %w", err)
	}
	if event.TaskID == "" {
		return ReviewCompleted{}, fmt.Errorf("review completed without task id")
	}
	return event, nil
}
