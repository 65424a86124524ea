//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/crossflow/internal/adapter/kafka"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
)

const testPredictionsTopic = "test-predictions"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka boots a single-node Kafka and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedMessage holds a deserialized message read from the predictions topic.
type publishedMessage struct {
	Record  domain.PredictionRecord
	Key     string
	Headers map[string]string
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from predictions topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.PredictionRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal prediction message")

	return publishedMessage{
		Record:  rec,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// TestPublisherRoundTrip verifies the publisher against real Kafka: one
// batch of predictions arrives with stable keys, direction headers, and
// intact payloads.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testPredictionsTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testPredictionsTopic,
		KafkaEnabled: true,
	}

	hour := time.Date(2024, time.April, 27, 9, 0, 0, 0, time.UTC)
	records := []domain.PredictionRecord{
		{
			Datetime:            hour,
			CountryFrom:         "NL",
			CountryTo:           "BE",
			EnergySent:          412.5,
			HomeEnergyPrice:     61.3,
			HomeTotalGeneration: 11840,
		},
		{
			Datetime:            hour,
			CountryFrom:         "BE",
			CountryTo:           "NL",
			EnergySent:          377.25,
			HomeEnergyPrice:     61.3,
			HomeTotalGeneration: 11840,
		},
	}

	publisher := kafka.NewPublisher(cfg, "NL", discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishBatch(ctx, "run-4f6a", records))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testPredictionsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]publishedMessage, len(records))
	for len(received) < len(records) {
		pm := readPublished(ctx, t, consumer)
		received[pm.Key] = pm
	}

	exportKey := "2024-04-27T09:00:00Z|NL|BE"
	importKey := "2024-04-27T09:00:00Z|BE|NL"
	require.Contains(t, received, exportKey)
	require.Contains(t, received, importKey)

	export := received[exportKey]
	assert.Equal(t, "Export", export.Headers["flow_direction"])
	assert.Equal(t, "run-4f6a", export.Headers["run_id"])
	assert.Equal(t, "NL", export.Record.CountryFrom)
	assert.Equal(t, "BE", export.Record.CountryTo)
	assert.Equal(t, 412.5, export.Record.EnergySent)
	assert.Equal(t, 61.3, export.Record.HomeEnergyPrice)
	assert.True(t, export.Record.Datetime.Equal(hour), "datetime survives the round trip")

	imported := received[importKey]
	assert.Equal(t, "Import", imported.Headers["flow_direction"])
	assert.Equal(t, "run-4f6a", imported.Headers["run_id"])
	assert.Equal(t, 377.25, imported.Record.EnergySent)
	assert.Equal(t, 11840.0, imported.Record.HomeTotalGeneration)
}

// TestPublisherBatchOrdering verifies a multi-hour batch lands completely:
// every directed pair for every hour arrives exactly once.
func TestPublisherBatchOrdering(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testPredictionsTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testPredictionsTopic,
		KafkaEnabled: true,
	}

	day := time.Date(2024, time.April, 27, 0, 0, 0, 0, time.UTC)
	neighbours := []string{"BE", "DE_LU", "GB"}
	var records []domain.PredictionRecord
	for h := 0; h < 24; h++ {
		hour := day.Add(time.Duration(h) * time.Hour)
		for _, n := range neighbours {
			records = append(records,
				domain.PredictionRecord{Datetime: hour, CountryFrom: "NL", CountryTo: n, EnergySent: float64(100 + h)},
				domain.PredictionRecord{Datetime: hour, CountryFrom: n, CountryTo: "NL", EnergySent: float64(90 + h)},
			)
		}
	}

	publisher := kafka.NewPublisher(cfg, "NL", discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	require.NoError(t, publisher.PublishBatch(ctx, "run-batch", records))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testPredictionsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := make(map[string]int, len(records))
	for n := 0; n < len(records); n++ {
		pm := readPublished(ctx, t, consumer)
		seen[pm.Key]++
	}

	assert.Len(t, seen, len(records), "every directed pair-hour should have a distinct key")
	for key, count := range seen {
		assert.Equal(t, 1, count, "key %s duplicated", key)
	}

	// No stragglers beyond the batch.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no extra messages on the topic")
}
