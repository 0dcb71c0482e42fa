package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/model"
)

// AuditSink stores consumed events.
type AuditSink interface {
	Insert(ctx context.Context, a *model.AuditLog) error
}

// Consumer drains the events queue into an AuditSink.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Sink     AuditSink
	Log      *zap.Logger
}

// Run connects, consumes and reconnects with exponential backoff (capped
// at 30s) until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("audit consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("audit consumer loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Log.Warn("audit consumer qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.Log.Error("audit consumer handle failed", zap.Error(err))
				_ = d.Nack(false, false) // no requeue: a poison message would loop forever
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and stores it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return errors.New("event without id or type")
	}
	payload := []byte(ev.Data)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return c.Sink.Insert(ctx, &model.AuditLog{
		EventID:    ev.ID,
		EventType:  ev.Type,
		Entity:     ev.Entity,
		EntityID:   ev.EntityID,
		UserID:     ev.UserID,
		Payload:    payload,
		OccurredAt: ev.OccurredAt,
	})
}
