package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-archive-etl/internal/config"
	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
	"github.com/couchcryptid/disaster-archive-etl/internal/pipeline"
)

// Writer produces curated events and run summaries to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the curated events to the sink topic in
// a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.DisasterEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// LoadSummary publishes the run summary as a single keyed message so
// downstream consumers can tell runs apart from event rows.
func (w *Writer) LoadSummary(ctx context.Context, run *pipeline.RunResult) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("serialize run summary: %w", err)
	}
	return w.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("run-" + run.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_kind", Value: []byte("run_summary")},
		},
	})
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DisasterEvent into a Kafka message.
func serializeToMessage(event domain.DisasterEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize disaster event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_kind", Value: []byte("event")},
			{Key: "disaster_type", Value: []byte(event.DisasterTypeCanonical)},
			{Key: "curated_at", Value: []byte(event.CuratedAt.Format(time.RFC3339))},
		},
	}, nil
}
