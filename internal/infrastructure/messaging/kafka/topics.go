// Package kafka provides the report event bus: topic definitions, the
// envelope format, and the producer/consumer used by the API server and
// the analysis worker.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medtext/reportiq/pkg/errors"
)

// Topics carried by the report pipeline.
const (
	// TopicReportReceived carries freshly uploaded documents awaiting analysis.
	TopicReportReceived = "report.received"
	// TopicReportAnalyzed carries completed analyses.
	TopicReportAnalyzed = "report.analyzed"
	// TopicReportFlagged carries analyses with out-of-range findings or vital alerts.
	TopicReportFlagged = "report.flagged"
	// TopicDeadLetter receives messages that exhausted their retries.
	TopicDeadLetter = "report.dead_letter"
)

// Message is a consumed Kafka record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// EventEnvelope standardizes every event on the bus.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ReportReceivedPayload announces a stored document ready for analysis.
type ReportReceivedPayload struct {
	AnalysisID   string    `json:"analysis_id"`
	DocumentHash string    `json:"document_hash"`
	Format       string    `json:"format"`
	ObjectKey    string    `json:"object_key"`
	ReceivedAt   time.Time `json:"received_at"`
}

// ReportAnalyzedPayload announces a completed analysis.
type ReportAnalyzedPayload struct {
	AnalysisID   string    `json:"analysis_id"`
	DocumentHash string    `json:"document_hash"`
	PatientName  string    `json:"patient_name"`
	ResultCount  int       `json:"result_count"`
	AlertCount   int       `json:"alert_count"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// ReportFlaggedPayload announces an analysis that needs clinician review.
type ReportFlaggedPayload struct {
	AnalysisID string    `json:"analysis_id"`
	Alerts     []string  `json:"alerts"`
	FlaggedAt  time.Time `json:"flagged_at"`
}

// NewEventEnvelope wraps a payload in a versioned envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event payload is empty")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// ToMessage renders the envelope as a producer message. The key is the
// envelope's event type subject so per-report ordering is preserved.
func (e *EventEnvelope) ToMessage(topic string, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// DecodeEnvelope parses a consumed message back into an envelope.
func DecodeEnvelope(msg *Message) (*EventEnvelope, error) {
	if msg == nil || len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event envelope")
	}
	return &env, nil
}
