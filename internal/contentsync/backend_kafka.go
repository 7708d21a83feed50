package contentsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaBackend delivers drained events to a Kafka topic. Records are keyed by
// the deterministic event id so all deliveries of one logical event land in
// the same partition, in order.
type KafkaBackend struct {
	client *kgo.Client
	topic  string
}

// NewKafkaBackend connects to the brokers and ensures the topic exists.
func NewKafkaBackend(ctx context.Context, brokers []string, topic string) (*KafkaBackend, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		if !errors.Is(err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
		}
	}
	return &KafkaBackend{client: client, topic: topic}, nil
}

func (b *KafkaBackend) EnqueueJob(ctx context.Context, eventID string, payload []byte) error {
	rec := &kgo.Record{Topic: b.topic, Key: []byte(eventID), Value: payload}
	if err := b.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", eventID, err)
	}
	return nil
}

func (b *KafkaBackend) Close() {
	b.client.Close()
}
