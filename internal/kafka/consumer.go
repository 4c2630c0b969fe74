package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/skynet/internal/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler processes one balance event
type EventHandler func(ctx context.Context, event *models.BalanceEvent) error

// Consumer wraps a Kafka consumer of balance events
type Consumer struct {
	reader  messageReader
	handler EventHandler
	grouped bool
}

// NewConsumer creates a new Kafka consumer. With an empty groupID the reader
// starts at the newest offset and commits nothing.
func NewConsumer(brokers []string, topic, groupID string, handler EventHandler) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	}
	if groupID == "" {
		cfg.StartOffset = kafka.LastOffset
	} else {
		cfg.StartOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(cfg)

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Kafka consumer initialized")

	return &Consumer{
		reader:  reader,
		handler: handler,
		grouped: groupID != "",
	}
}

// Start consumes events until ctx is cancelled. Malformed messages are skipped;
// handler errors are retried with exponential backoff, then skipped.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("Starting Kafka consumer")

	const (
		maxAttempts = 5
		baseDelay   = 500 * time.Millisecond
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to fetch message")
			continue
		}

		var event models.BalanceEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping malformed balance event")
			c.commit(ctx, msg)
			continue
		}

		for attempt := 0; attempt < maxAttempts; attempt++ {
			err = c.handler(ctx, &event)
			if err == nil || attempt == maxAttempts-1 {
				break
			}
			log.Error().
				Err(err).
				Int64("offset", msg.Offset).
				Int("attempt", attempt+1).
				Msg("Failed to handle balance event - will retry")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseDelay * time.Duration(1<<attempt)):
			}
		}
		if err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("Balance event failed after all retries - skipping")
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if !c.grouped {
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}
