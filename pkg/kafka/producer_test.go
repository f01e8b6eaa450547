package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPaidPayload struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

// mustEvent builds an order.paid event or fails the test.
func mustEvent(t *testing.T, data any) *Event {
	t.Helper()
	event, err := NewEvent("order.paid", "ord-123", "order", "order-service", data)
	require.NoError(t, err)
	return event
}

func TestNewEvent(t *testing.T) {
	payload := orderPaidPayload{OrderID: "ord-123", Amount: 4999}
	event := mustEvent(t, payload)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "order.paid", event.EventType)
	assert.Equal(t, "ord-123", event.AggregateID)
	assert.Equal(t, "order", event.AggregateType)
	assert.Equal(t, "order-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.NotNil(t, event.Metadata)

	var got orderPaidPayload
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, payload, got)
}

func TestNewEvent_UnserializableData(t *testing.T) {
	_, err := NewEvent("order.paid", "ord-1", "order", "order-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original := mustEvent(t, map[string]string{"gateway_txn": "vq-777"}).
		WithCorrelationID("corr-abc").
		WithMetadata("actor", "payment-webhook")

	raw, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, original.EventType, restored.EventType)
	assert.Equal(t, original.AggregateID, restored.AggregateID)
	assert.Equal(t, original.CorrelationID, restored.CorrelationID)
	assert.Equal(t, original.Metadata, restored.Metadata)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
	assert.WithinDuration(t, original.Timestamp, restored.Timestamp, time.Millisecond)
}

func TestEvent_BuilderChaining(t *testing.T) {
	event := mustEvent(t, nil)

	assert.Same(t, event, event.WithCorrelationID("corr-xyz"))
	assert.Equal(t, "corr-xyz", event.CorrelationID)

	assert.Same(t, event, event.WithMetadata("k1", "v1").WithMetadata("k2", "v2"))
	assert.Equal(t, "v1", event.Metadata["k1"])
	assert.Equal(t, "v2", event.Metadata["k2"])
}

func TestEvent_WithMetadata_InitializesNilMap(t *testing.T) {
	event := &Event{EventID: "evt-1", EventType: "order.paid"}
	event.WithMetadata("key", "value")
	assert.Equal(t, "value", event.Metadata["key"])
}

func TestEvent_UnmarshalData(t *testing.T) {
	event := mustEvent(t, orderPaidPayload{OrderID: "ord-9", Amount: 7999})

	var got orderPaidPayload
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, "ord-9", got.OrderID)
	assert.Equal(t, int64(7999), got.Amount)

	bad := &Event{Data: json.RawMessage(`not valid json`)}
	assert.Error(t, bad.UnmarshalData(&got))
}

func TestUnmarshalEvent_Garbage(t *testing.T) {
	for _, raw := range [][]byte{[]byte(`{broken json`), {}} {
		_, err := UnmarshalEvent(raw)
		require.Error(t, err)
	}
}

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "webnova", TopicPrefix)

	tests := []struct {
		domain, action, want string
	}{
		{"order", "paid", "webnova.order.paid"},
		{"order", "settled", "webnova.order.settled"},
		{"payment", "completed", "webnova.payment.completed"},
		{"inventory", "reserved", "webnova.inventory.reserved"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Topic(tt.domain, tt.action))
	}
}

func TestEventMessage_KeysByAggregateAndSetsHeaders(t *testing.T) {
	event := mustEvent(t, orderPaidPayload{OrderID: "ord-123", Amount: 100}).
		WithCorrelationID("corr-55")

	msg, err := eventMessage("webnova.order.paid", event)
	require.NoError(t, err)

	assert.Equal(t, "webnova.order.paid", msg.Topic)
	assert.Equal(t, []byte("ord-123"), msg.Key, "partition key must be the aggregate ID")

	assert.Equal(t, "order.paid", headerValue(t, msg.Headers, "event_type"))
	assert.Equal(t, "order-service", headerValue(t, msg.Headers, "source"))
	assert.Equal(t, "corr-55", headerValue(t, msg.Headers, "correlation_id"))

	restored, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, restored.EventID)
}

func TestEventMessage_NoCorrelationIDHeader(t *testing.T) {
	msg, err := eventMessage("webnova.order.paid", mustEvent(t, nil))
	require.NoError(t, err)
	for _, h := range msg.Headers {
		assert.NotEqual(t, "correlation_id", h.Key)
	}
}

func TestNewProducer_CloseWithoutBroker(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(t.Context(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}
