package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
)

// DefaultTopic receives every lifecycle event.
const DefaultTopic = "docflow.document-events"

// Kafka publishes events keyed by document id, so one document's events stay
// ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
}

var _ ports.EventPublisher = (*Kafka)(nil)

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic with broker defaults if it is missing.
func (k *Kafka) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(k.client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, k.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", k.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", k.topic, resp.Err)
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, event models.Event) error {
	value, err := Encode(event)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Key:   []byte(event.DocumentID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", event.Type, err)
	}
	return nil
}

// Ping checks broker connectivity.
func (k *Kafka) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *Kafka) Close() {
	k.client.Close()
}
