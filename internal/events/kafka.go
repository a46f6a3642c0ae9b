package events

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Kafka publishes events to a topic keyed by coupon id, so all events of a
// coupon land on one partition in order.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a publisher writing to topic on the given brokers.
func NewKafka(topic string, brokers ...string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	msg := kafka.Message{
		Key:   []byte(e.Coupon.ID),
		Value: Encode(e),
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Kind)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event", e.Kind)
	}
	return nil
}

// Close flushes pending writes and releases the connection.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
