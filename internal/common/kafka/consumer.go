package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	fetchRetryDelay    = time.Second
	handlerRetryDelay  = time.Second
	maxHandlerAttempts = 5
)

// MessageHandler processes one message. Returning an error makes the
// consumer call it again for the same message, up to maxHandlerAttempts
// times. A message that still fails is skipped without being committed;
// kafka-go does not redeliver it, and the next successful commit covers
// its offset.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Consumer reads one topic as part of a consumer group.
type Consumer struct {
	reader      *kafkago.Reader
	logger      *zap.Logger
	retryDelay  time.Duration
	maxAttempts int
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger:      logger,
		retryDelay:  handlerRetryDelay,
		maxAttempts: maxHandlerAttempts,
	}
}

// Consume blocks, dispatching messages to handler until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if err := c.handle(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("message handler failed, skipping message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempts", c.maxAttempts),
				zap.Error(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

// handle runs handler until it succeeds, maxAttempts is reached or ctx is
// done. It returns the last handler error.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg kafkago.Message) error {
	attempts := max(c.maxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		c.logger.Warn("message handler failed, retrying",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.retryDelay):
		}
	}
	return err
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
