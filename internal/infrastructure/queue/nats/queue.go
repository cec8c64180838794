package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "road-safety-workers"

// Queue publishes and consumes question-answered events.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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

	conn, err := nats.Connect(
		url,
		nats.Name("road-safety-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishQuestionAnswered(ctx context.Context, entry domain.HistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal question answered event: %w", err)
	}

	publish := func(context.Context) error {
		return q.conn.Publish(q.subject, payload)
	}
	if q.executor == nil {
		if err := publish(ctx); err != nil {
			return fmt.Errorf("publish question answered: %w", err)
		}
		return nil
	}

	err = q.executor.Execute(ctx, "nats_publish", publish, func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "publish question answered", err)
	}
	return nil
}

// SubscribeQuestionAnswered consumes events in the worker queue group and
// blocks until ctx is done.
func (q *Queue) SubscribeQuestionAnswered(ctx context.Context, handler func(context.Context, domain.HistoryEntry) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		var entry domain.HistoryEntry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			slog.Error("drop malformed question answered event", "error", err)
			return
		}
		if err := handler(ctx, entry); err != nil {
			slog.Error("handle question answered event", "error", err, "entry_id", entry.ID)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	<-ctx.Done()
	return ctx.Err()
}
