package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
	"github.com/medtext/reportiq/pkg/errors"
)

var (
	// ErrProducerClosed is returned on Publish after Close.
	ErrProducerClosed = errors.New(errors.ErrCodeInternal, "kafka producer closed")
)

// maxMessageBytes caps a single event value. Summaries are small; anything
// bigger indicates a bug upstream.
const maxMessageBytes = 1 << 20

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes report events.
type Producer struct {
	writer  writerInterface
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	closed  atomic.Bool
}

// NewProducer builds a hash-balanced producer over the configured brokers.
func NewProducer(cfg config.KafkaConfig, log logging.Logger, metrics *prometheus.AppMetrics) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries + 1,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer:  writer,
		logger:  log.Named("kafka_producer"),
		metrics: metrics,
	}, nil
}

// Publish writes a single message and blocks until acknowledged.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "message topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value required")
	}
	if len(msg.Value) > maxMessageBytes {
		return errors.New(errors.ErrCodeValidation, "message value too large")
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, toKafkaMessage(msg))
	prometheus.RecordMessagePublished(p.metrics, msg.Topic, err)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish message")
	}

	p.logger.Debug("Message published",
		logging.String("topic", msg.Topic),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}

// PublishEvent wraps a payload in an envelope and publishes it keyed by
// analysisID so events for one report stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, topic, eventType, analysisID string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, "reportiq", payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, analysisID)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// Close flushes and closes the writer. Safe to call more than once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed")
	return err
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}
