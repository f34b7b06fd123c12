package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
	"github.com/medtext/reportiq/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "kafka consumer already running")
)

// MessageHandler processes one consumed message. A nil return commits the
// offset; an error triggers the retry and dead-letter path.
type MessageHandler func(ctx context.Context, msg *Message) error

// readerInterface abstracts kafka.Reader for testing.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads report events in a consumer group and dispatches them to
// per-topic handlers.
type Consumer struct {
	reader  readerInterface
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	maxRetries     int
	retryBackoff   time.Duration
	commitInterval time.Duration
	deadLetter     *Producer

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetterProducer routes messages that exhaust retries to TopicDeadLetter.
func WithDeadLetterProducer(p *Producer) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

// WithConsumerMetrics wires message consumption counters.
func WithConsumerMetrics(m *prometheus.AppMetrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithCommitInterval batches offset commits instead of committing
// synchronously after every message.
func WithCommitInterval(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.commitInterval = d }
}

// NewConsumer builds a group consumer over the given topics.
func NewConsumer(cfg config.KafkaConfig, topics []string, log logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka group id required")
	}
	if len(topics) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "topics required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	c := &Consumer{
		logger:       log.Named("kafka_consumer"),
		maxRetries:   3,
		retryBackoff: time.Second,
		handlers:     make(map[string]MessageHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		StartOffset:    startOffset,
		CommitInterval: c.commitInterval,
	})
	return c, nil
}

// Subscribe registers the handler for a topic. Must be called before Start.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
}

// Start launches the consume loop.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Fetch failed", logging.Err(err))
			time.Sleep(time.Second)
			continue
		}

		msg := fromKafkaMessage(m)

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
			c.commit(ctx, m)
			continue
		}

		start := time.Now()
		procErr := c.processMessage(ctx, msg, handler)
		prometheus.RecordMessageConsumed(c.metrics, m.Topic, procErr, time.Since(start))
		if procErr != nil {
			c.logger.Error("Message dropped",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(procErr))
		}
		// The offset advances regardless: failed messages went to the dead
		// letter topic or were logged, and must not wedge the partition.
		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Error("Commit failed", logging.Err(err))
	}
}

// processMessage runs the handler with exponential backoff retries, then
// forwards to the dead letter topic when configured.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	backoff := c.retryBackoff
	for i := 0; i < c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err = handler(ctx, msg); err == nil {
			return nil
		}
		backoff *= 2
	}

	if c.deadLetter != nil {
		headers := make(map[string]string, len(msg.Headers)+2)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers["original_topic"] = msg.Topic
		headers["error_message"] = err.Error()

		dlErr := c.deadLetter.Publish(ctx, &ProducerMessage{
			Topic:   TopicDeadLetter,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: headers,
		})
		if dlErr != nil {
			c.logger.Error("Dead letter publish failed", logging.Err(dlErr))
			return err
		}
		return nil
	}
	return err
}

// Close stops the loop and releases the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed")
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Timestamp: m.Time,
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
