package kafka

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKeepsEnvelope(t *testing.T) {
	event := models.Event{
		ID:     "evt-1",
		Type:   models.EventPrescriptionIssued,
		Source: "api-server",
		Data: map[string]interface{}{
			"entityId": "c0ffee",
			"actorId":  "doc-1",
		},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	message, err := encodeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", string(message.Key))
	assert.Equal(t, "event-type", message.Headers[0].Key)

	decoded, err := decodeEvent(message)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, "doc-1", decoded.Data["actorId"])
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
}

func TestDecodeFallsBackToHeaderType(t *testing.T) {
	message := kafka.Message{
		Value:   []byte(`{"id":"evt-2","data":{}}`),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(models.EventConsultationCreated)}},
	}

	event, err := decodeEvent(message)
	require.NoError(t, err)
	assert.Equal(t, models.EventConsultationCreated, event.Type)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeEvent(kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)

	_, err = decodeEvent(kafka.Message{Value: []byte(`{"id":"evt-3"}`)})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishEvent(context.Background(), models.EventActorRegistered, "test", nil))
}

func TestProducerRoundTrip(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	producer := NewProducer(strings.Split(brokers, ","), "mediconnect.events.test")
	defer producer.Close()

	err := producer.PublishEvent(ctx, models.EventActorRegistered, "kafka-test", map[string]interface{}{"entityId": "x"})
	require.NoError(t, err)
}

type stalledPublisher struct{}

func (stalledPublisher) PublishEvent(ctx context.Context, _ string, _ string, _ map[string]interface{}) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeoutBoundsStalledPublish(t *testing.T) {
	pub := WithTimeout(stalledPublisher{}, 20*time.Millisecond)

	start := time.Now()
	err := pub.PublishEvent(context.Background(), models.EventActorRegistered, "api-server", map[string]interface{}{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
