package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON, keyed by target so one
// target's pages stay ordered within a partition.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier needs at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka notifier needs a topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaNotifier{writer: w, topic: topic}, nil
}

func (k *KafkaNotifier) Deliver(ctx context.Context, n model.Notification) error {
	data, err := encode(n)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(n.Target),
		Value: data,
		Time:  n.At,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(n.Severity.Name())},
			{Key: "reason", Value: []byte(n.Reason)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }
