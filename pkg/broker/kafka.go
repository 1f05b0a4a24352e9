package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/noah-isme/kb-api/pkg/config"
)

// ErrNotConfigured is returned by a Producer built without brokers.
var ErrNotConfigured = errors.New("kafka producer not configured")

// messageWriter is the subset of *kafka.Writer used by Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes keyed messages to a single topic.
type Producer struct {
	writer  messageWriter
	timeout time.Duration
}

// NewProducer builds a synchronous producer. It returns nil when no brokers are configured.
func NewProducer(cfg config.KafkaConfig) *Producer {
	if len(cfg.Brokers) == 0 {
		return nil
	}

	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Transport:    transport,
		WriteTimeout: 10 * time.Second,
	})
}

func newProducer(w messageWriter) *Producer {
	return &Producer{writer: w, timeout: 5 * time.Second}
}

// Publish writes one message. Messages sharing a key land on the same partition.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	if p == nil || p.writer == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
