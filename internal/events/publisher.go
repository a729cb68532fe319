// Package events publishes recorded clicks to downstream consumers.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/models"
)

// Publisher sends click events somewhere. Implementations must be safe
// for concurrent use.
type Publisher interface {
	PublishClick(ctx context.Context, click models.ClickEvent) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// KafkaPublisher writes click events to a Kafka topic, keyed by link id
// so all clicks of one link land on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher with one long-lived writer.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// PublishClick writes one click event.
func (p *KafkaPublisher) PublishClick(ctx context.Context, click models.ClickEvent) error {
	msg, err := clickMessage(click)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish click: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func clickMessage(click models.ClickEvent) (kafka.Message, error) {
	value, err := json.Marshal(click)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode click: %w", err)
	}
	return kafka.Message{
		Key:   []byte(click.LinkID.String()),
		Value: value,
		Time:  click.Timestamp,
	}, nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishClick(context.Context, models.ClickEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
