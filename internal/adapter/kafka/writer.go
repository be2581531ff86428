package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/compost-sensor-etl/internal/config"
	"github.com/couchcryptid/compost-sensor-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces derived readings to a Kafka topic.
// It implements pipeline.ReadingLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes readings in the given order with a single
// WriteMessages call. Messages are keyed by sensor ID so one sensor's
// readings stay on one partition.
func (w *Writer) LoadBatch(ctx context.Context, sensorID string, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(sensorID, readings[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	w.logger.Debug("wrote readings to kafka", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// readingMessage is the sink message body.
type readingMessage struct {
	SensorID string `json:"sensor_id"`
	domain.Reading
}

// serializeToMessage marshals a reading into a Kafka message.
func serializeToMessage(sensorID string, reading domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(readingMessage{SensorID: sensorID, Reading: reading})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sensorID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "sensor_id", Value: []byte(sensorID)},
			{Key: "observed_at", Value: []byte(reading.ObservedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
