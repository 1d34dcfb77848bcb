// Package kafka connects the relay to the platform event bus: relay events
// are mirrored out through a sarama producer and domain events from the main
// application are read back in with a kafka-go consumer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// Envelope is the value written for every outbound event
type Envelope struct {
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Producer publishes relay events to one topic. It implements events.Publisher.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig returns the sarama settings used for the events topic
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.MaxMessageBytes = 1000000
	config.Version = sarama.V2_0_0_0
	config.ClientID = "relay-service"
	return config
}

func InitKafkaProducer(brokers []string, topic string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	slog.Info("Kafka producer connected", "brokers", brokers, "topic", topic)
	return NewProducer(producer, topic), nil
}

// NewProducer wraps an existing sarama producer
func NewProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Publish writes one event keyed by key so events for the same entity stay
// on one partition. ctx is only checked before sending; sarama applies its
// own timeouts.
func (p *Producer) Publish(ctx context.Context, kind, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	value, err := json.Marshal(Envelope{
		Kind:       kind,
		Key:        key,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", kind, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}

	slog.Debug("Event published", "kind", kind, "key", key, "partition", partition, "offset", offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
