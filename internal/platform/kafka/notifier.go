package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/events"
	segkafka "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageWriter is the subset of *kafka.Writer used by Notifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...segkafka.Message) error
	Close() error
}

// NewWriter creates an asynchronous writer for topic. Delivery failures
// are logged; Notify never waits for the broker.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *segkafka.Writer {
	log := logger.With("component", "kafka_writer", "topic", topic)
	return &segkafka.Writer{
		Addr:                   segkafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &segkafka.Hash{},
		RequiredAcks:           segkafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []segkafka.Message, err error) {
			if err != nil {
				log.Warn("failed to deliver notices", "count", len(messages), "error", err)
			}
		},
	}
}

// Notifier publishes each notice as a JSON message keyed by task id, so
// notices for one task stay ordered within a partition.
type Notifier struct {
	writer MessageWriter
}

// NewNotifier creates a Notifier.
func NewNotifier(writer MessageWriter) *Notifier {
	return &Notifier{writer: writer}
}

// Notify implements events.Notifier.
func (n *Notifier) Notify(ctx context.Context, notice events.Notice) error {
	value, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	key := string(notice.Kind)
	if notice.TaskID != uuid.Nil {
		key = notice.TaskID.String()
	}

	headers := HeaderCarrier{{Key: "kind", Value: []byte(notice.Kind)}}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	err = n.writer.WriteMessages(ctx, segkafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []segkafka.Header(headers),
		Time:    notice.At,
	})
	if err != nil {
		return fmt.Errorf("kafka publish notice: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
