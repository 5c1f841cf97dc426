package feedsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/feeds"
)

// Producer publishes feed sync completion events to Kafka.
type Producer struct {
	Writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer initializes a Kafka writer for feed sync events.
func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	return &Producer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// PublishSyncCompleted sends one completion event, keyed by source so
// events for the same feed stay ordered.
func (p *Producer) PublishSyncCompleted(ctx context.Context, source, runID string, stats feeds.Stats) error {
	event := SyncCompletedEvent{
		EventType:     EventTypeSyncCompleted,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Source:        source,
		RunID:         runID,
		Stats:         stats,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(source),
		Value: payload,
	})
}

// CompletedFunc adapts the producer to the feed registry's completion hook.
// Publish failures are logged, not propagated, so a broker outage never
// fails an otherwise successful sync.
func (p *Producer) CompletedFunc(ctx context.Context) feeds.CompletedFunc {
	return func(source, runID string, stats feeds.Stats) {
		if err := p.PublishSyncCompleted(ctx, source, runID, stats); err != nil {
			p.logger.Warn("Failed to publish sync completion event",
				zap.String("source", source),
				zap.String("run", runID),
				zap.Error(err))
		}
	}
}

// Close cleans up the Kafka writer.
func (p *Producer) Close() error {
	return p.Writer.Close()
}
