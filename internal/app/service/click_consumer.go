package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkguard/internal/app/model"
	"go.uber.org/zap"
)

const (
	consumeBatch      = 10
	consumeMaxWait    = 5 * time.Second
	consumeRetryDelay = time.Second
)

var errMalformedClick = errors.New("malformed click event")

// EnsureClickStream creates the click stream and its durable consumer when missing.
func EnsureClickStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       model.ClickStreamName,
			Subjects:   []string{model.ClickStreamSubject},
			MaxBytes:   model.ClickStreamMaxBytes,
			Duplicates: 2 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// ClickConsumer drains the click stream into the click record store.
type ClickConsumer struct {
	js         nats.JetStreamContext
	sink       ClickHistorySink
	logger     *zap.Logger
	retryDelay time.Duration
	done       chan struct{}
}

// messageFetcher is the part of a pull subscription the consume loop uses.
type messageFetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, sink ClickHistorySink, logger *zap.Logger) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{
		js:         js,
		sink:       sink,
		logger:     logger,
		retryDelay: consumeRetryDelay,
		done:       make(chan struct{}),
	}
}

// Start subscribes and consumes in the background until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureClickStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName, nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub messageFetcher) {
	defer close(c.done)

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(consumeBatch, nats.MaxWait(consumeMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Error("click subscription closed", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		for _, msg := range msgs {
			c.process(ctx, msg)
		}
	}

	c.logger.Info("click consumer stopped")
}

func (c *ClickConsumer) process(ctx context.Context, msg *nats.Msg) {
	err := c.handle(ctx, msg.Data)
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, errMalformedClick):
		c.logger.Error("dropping click event", zap.Error(err))
		_ = msg.Term()
	default:
		c.logger.Error("failed to store click event", zap.Error(err))
		_ = msg.Nak()
	}
}

// handle decodes one message and appends it. Redelivered messages are idempotent
// because the record keeps the event ID.
func (c *ClickConsumer) handle(ctx context.Context, data []byte) error {
	var event model.ClickEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %w", errMalformedClick, err)
	}
	if event.ID == "" || event.LinkCode == "" {
		return fmt.Errorf("%w: missing id or link code", errMalformedClick)
	}

	record := &model.ClickRecord{
		ID:        event.ID,
		Code:      event.LinkCode,
		Day:       DayBucket(event.Timestamp).Unix(),
		IP:        event.IP,
		UserAgent: event.UserAgent,
		ClickedAt: event.Timestamp.UTC(),
	}
	if err := c.sink.Append(ctx, record); err != nil {
		return fmt.Errorf("append click %s for %s: %w", event.ID, event.LinkCode, err)
	}

	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.String("link_code", event.LinkCode),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
