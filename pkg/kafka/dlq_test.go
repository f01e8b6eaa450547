package kafka

import (
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	tests := []struct {
		originalTopic string
		want          string
	}{
		{"webnova.order.paid", "webnova.dlq.webnova.order.paid"},
		{"orders", "webnova.dlq.orders"},
		{"webnova.payment.vietqr.webhook", "webnova.dlq.webnova.payment.vietqr.webhook"},
		{"user-events", "webnova.dlq.user-events"},
		{"inventory_updates", "webnova.dlq.inventory_updates"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DLQTopic(tt.originalTopic))
	}
}

func headerValue(t *testing.T, headers []kafka.Header, key string) string {
	t.Helper()
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	t.Fatalf("header %q not found", key)
	return ""
}

func TestDLQHeaders_RecordsProvenance(t *testing.T) {
	msg := kafka.Message{
		Topic:     "webnova.order.paid",
		Partition: 3,
		Offset:    421,
		Headers:   []kafka.Header{{Key: "event_id", Value: []byte("evt-1")}},
	}

	headers := dlqHeaders(msg, errors.New("settlement handler failed"), "settlement")
	require.Len(t, headers, 6)

	assert.Equal(t, "evt-1", headerValue(t, headers, "event_id"), "original headers must survive")
	assert.Equal(t, "webnova.order.paid", headerValue(t, headers, "dlq.original_topic"))
	assert.Equal(t, "3", headerValue(t, headers, "dlq.original_partition"))
	assert.Equal(t, "421", headerValue(t, headers, "dlq.original_offset"))
	assert.Equal(t, "settlement", headerValue(t, headers, "dlq.consumer_group"))
	assert.Equal(t, "settlement handler failed", headerValue(t, headers, "dlq.error"))
}

func TestDLQHeaders_NilErrorOmitsErrorHeader(t *testing.T) {
	msg := kafka.Message{Topic: "orders", Partition: 0, Offset: 0}

	headers := dlqHeaders(msg, nil, "settlement")
	require.Len(t, headers, 4)
	for _, h := range headers {
		assert.NotEqual(t, "dlq.error", h.Key)
	}
}
