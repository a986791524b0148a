// Package publish fans security-relevant audit events out to Kafka so SIEM
// pipelines can consume them without querying the chain.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"vigil/internal/audit"
)

// Sink publishes high and critical severity events to a Kafka topic.
// Production is asynchronous: a broker outage never blocks the audit chain.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

func WithSinkLogger(logger *slog.Logger) SinkOption {
	return func(s *Sink) { s.logger = logger }
}

// NewSink connects to the brokers and ensures the topic exists.
func NewSink(ctx context.Context, brokers []string, topic string, opts ...SinkOption) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	s := &Sink{client: client, topic: topic}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureTopic(ctx context.Context) error {
	admin := kadm.NewClient(s.client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("ensure topic %s: %w", s.topic, err)
	}
	for _, res := range resp {
		// An existing topic is fine; anything else is a real failure.
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", s.topic, res.Err)
		}
	}
	return nil
}

// HandleEvent is an audit.Subscriber. Events below high severity are
// ignored; the chain already holds them.
func (s *Sink) HandleEvent(event audit.Event) {
	if event.Severity != audit.SeverityHigh && event.Severity != audit.SeverityCritical {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal audit event for kafka", "event_id", event.ID, "error", err)
		}
		return
	}
	record := &kgo.Record{Key: []byte(event.ID), Value: value}
	s.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Error("kafka produce failed, event remains in audit chain",
				"event_id", event.ID, "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (s *Sink) Close() {
	_ = s.client.Flush(context.Background())
	s.client.Close()
}
