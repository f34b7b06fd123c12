package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
)

type mockReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []kafkago.Message
	closed    bool
}

func (r *mockReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *mockReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *mockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *mockReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func newTestConsumer(r readerInterface) *Consumer {
	return &Consumer{
		reader:       r,
		logger:       logging.NewNopLogger(),
		maxRetries:   2,
		retryBackoff: time.Millisecond,
		handlers:     make(map[string]MessageHandler),
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	log := logging.NewNopLogger()

	_, err := NewConsumer(config.KafkaConfig{}, []string{TopicReportReceived}, log)
	assert.Error(t, err)

	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, []string{TopicReportReceived}, log)
	assert.Error(t, err)

	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, nil, log)
	assert.Error(t, err)
}

func TestConsumer_DispatchesToHandler(t *testing.T) {
	reader := &mockReader{messages: []kafkago.Message{
		{Topic: TopicReportReceived, Offset: 7, Value: []byte(`{"event_id":"e1"}`)},
	}}
	c := newTestConsumer(reader)

	received := make(chan *Message, 1)
	c.Subscribe(TopicReportReceived, func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case msg := <-received:
		assert.Equal(t, TopicReportReceived, msg.Topic)
		assert.Equal(t, int64(7), msg.Offset)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	assert.Eventually(t, func() bool { return reader.committedCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestConsumer_CommitsUnhandledTopics(t *testing.T) {
	reader := &mockReader{messages: []kafkago.Message{
		{Topic: "unknown.topic", Offset: 1, Value: []byte("{}")},
	}}
	c := newTestConsumer(reader)

	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Eventually(t, func() bool { return reader.committedCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestConsumer_StartTwice(t *testing.T) {
	c := newTestConsumer(&mockReader{})

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestProcessMessage_RetriesThenSucceeds(t *testing.T) {
	c := newTestConsumer(&mockReader{})

	calls := 0
	err := c.processMessage(context.Background(), &Message{Topic: TopicReportReceived},
		func(ctx context.Context, msg *Message) error {
			calls++
			if calls < 3 {
				return assert.AnError
			}
			return nil
		})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessMessage_DeadLetterAfterRetries(t *testing.T) {
	c := newTestConsumer(&mockReader{})
	w := &mockWriter{}
	c.deadLetter = newTestProducer(w)

	msg := &Message{
		Topic:   TopicReportReceived,
		Key:     []byte("a-1"),
		Value:   []byte("{}"),
		Headers: map[string]string{"event_type": "report.received"},
	}
	err := c.processMessage(context.Background(), msg,
		func(ctx context.Context, m *Message) error { return assert.AnError })

	// Dead lettering resolves the message so the offset can advance.
	assert.NoError(t, err)
	require.Len(t, w.written, 1)
	dl := w.written[0]
	assert.Equal(t, TopicDeadLetter, dl.Topic)

	headers := make(map[string]string)
	for _, h := range dl.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, TopicReportReceived, headers["original_topic"])
	assert.NotEmpty(t, headers["error_message"])
}

func TestProcessMessage_NoDeadLetterReturnsError(t *testing.T) {
	c := newTestConsumer(&mockReader{})

	err := c.processMessage(context.Background(), &Message{Topic: TopicReportReceived},
		func(ctx context.Context, m *Message) error { return assert.AnError })

	assert.ErrorIs(t, err, assert.AnError)
}
