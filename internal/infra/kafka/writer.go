package kafka

import (
	"context"
	"encoding/json"
	"time"

	"kasuwa/internal/infra/rabbitmq"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Writer publishes the same envelopes as the RabbitMQ publisher onto a
// single Kafka topic, keyed by routing key.
type Writer struct {
	w *kafka.Writer
}

var _ rabbitmq.PublisherInterface = (*Writer)(nil)

func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (k *Writer) Publish(ctx context.Context, pattern string, data any) error {
	env := rabbitmq.NewEnvelope(pattern, data)
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(pattern),
		Value: body,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "id", Value: []byte(env.ID)},
		},
	})
	return errors.Wrap(err, "write kafka message")
}

func (k *Writer) Close() error {
	return k.w.Close()
}
