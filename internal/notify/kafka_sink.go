package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"stockhold/internal/tracing"
)

// KafkaSink writes events as JSON, keyed by product id so that one
// product's events stay ordered within a partition.
type KafkaSink struct {
	w *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 5 * time.Second,
			// the notifier owns retries
			MaxAttempts: 1,
		},
	}
}

func (s *KafkaSink) Deliver(ctx context.Context, evt Event) error {
	msg, err := encodeMessage(ctx, evt)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.w.WriteMessages(ctx, msg), "write %s", evt.Type)
}

func (s *KafkaSink) Close() error { return s.w.Close() }

func encodeMessage(ctx context.Context, evt Event) (kafka.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "encode event")
	}
	headers := []kafka.Header{{Key: "event_type", Value: []byte(evt.Type)}}
	return kafka.Message{
		Key:     []byte(evt.ProductID),
		Value:   body,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
		Time:    evt.OccurredAt,
	}, nil
}
