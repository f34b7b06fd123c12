package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEnvelope(t *testing.T) {
	payload := ReportReceivedPayload{
		AnalysisID:   "a-1",
		DocumentHash: "deadbeef",
		Format:       "text",
		ObjectKey:    "raw/a-1",
		ReceivedAt:   time.Now().UTC(),
	}

	env, err := NewEventEnvelope("report.received", "reportiq", payload)

	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "report.received", env.EventType)
	assert.Equal(t, "reportiq", env.Source)
	assert.Equal(t, "v1", env.SchemaVersion)
	assert.False(t, env.Timestamp.IsZero())

	var decoded ReportReceivedPayload
	require.NoError(t, env.DecodePayload(&decoded))
	assert.Equal(t, payload.AnalysisID, decoded.AnalysisID)
	assert.Equal(t, payload.DocumentHash, decoded.DocumentHash)
}

func TestNewEventEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEventEnvelope("report.received", "reportiq", make(chan int))
	assert.Error(t, err)
}

func TestDecodePayload_Empty(t *testing.T) {
	env := &EventEnvelope{}
	var decoded ReportReceivedPayload
	assert.Error(t, env.DecodePayload(&decoded))
}

func TestEnvelopeToMessage(t *testing.T) {
	env, err := NewEventEnvelope("report.analyzed", "reportiq", ReportAnalyzedPayload{AnalysisID: "a-2"})
	require.NoError(t, err)

	msg, err := env.ToMessage(TopicReportAnalyzed, "a-2")

	require.NoError(t, err)
	assert.Equal(t, TopicReportAnalyzed, msg.Topic)
	assert.Equal(t, []byte("a-2"), msg.Key)
	assert.Equal(t, "report.analyzed", msg.Headers["event_type"])
	assert.Equal(t, "reportiq", msg.Headers["source_service"])
	assert.Equal(t, "v1", msg.Headers["schema_version"])

	var round EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &round))
	assert.Equal(t, env.EventID, round.EventID)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := NewEventEnvelope("report.flagged", "reportiq", ReportFlaggedPayload{
		AnalysisID: "a-3",
		Alerts:     []string{"High Blood Pressure (150/95)"},
	})
	require.NoError(t, err)
	pm, err := env.ToMessage(TopicReportFlagged, "a-3")
	require.NoError(t, err)

	got, err := DecodeEnvelope(&Message{Topic: pm.Topic, Value: pm.Value})

	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)

	var payload ReportFlaggedPayload
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, []string{"High Blood Pressure (150/95)"}, payload.Alerts)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope(nil)
	assert.Error(t, err)

	_, err = DecodeEnvelope(&Message{Value: []byte("{not json")})
	assert.Error(t, err)
}
