// Package kafka forwards audit events to a Kafka topic so provenance history
// can be retained outside the service without ever crossing its public
// boundary. The sink is optional; it is wired only when brokers are
// configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "veritag/pkg/platform/audit"
)

// Sink implements audit.Store by producing each event to a topic. Reads are
// not supported; the sink is meant to sit behind audit.MultiStore next to a
// queryable store.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and returns a Sink.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		// Keyed by certificate so one certificate's provenance stays ordered
		// within a partition.
		Key:   []byte(event.CertificateID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) ListByCertificate(context.Context, string) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka sink is write-only")
}

// Close flushes and closes the underlying client.
func (s *Sink) Close() {
	s.client.Close()
}
