package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
)

// Publisher produces prediction rows to the predictions topic.
type Publisher struct {
	writer *kafkago.Writer
	home   string
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured predictions
// topic.
func NewPublisher(cfg *config.Config, home string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, home: home, logger: logger}
}

// PublishBatch serializes and publishes a run's predictions in a single
// WriteMessages call.
func (p *Publisher) PublishBatch(ctx context.Context, runID string, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(p.home, runID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Info("published predictions", "count", len(msgs), "run_id", runID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a prediction into a Kafka message keyed by
// hour and directed pair.
func serializeToMessage(home, runID string, rec domain.PredictionRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction: %w", err)
	}
	key := fmt.Sprintf("%s|%s|%s", rec.Datetime.UTC().Format(time.RFC3339), rec.CountryFrom, rec.CountryTo)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "flow_direction", Value: []byte(domain.Direction(home, rec.CountryFrom))},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
