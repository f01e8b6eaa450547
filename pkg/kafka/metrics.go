package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func consumerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		[]string{"topic", "consumer_group"},
	)
}

func producerCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		[]string{"topic"},
	)
}

// Consumer side. Received minus processed minus failed approximates the
// in-flight backlog; duplicates are counted separately so redeliveries do
// not look like real traffic.
var (
	ConsumerMessagesReceived = consumerCounter(
		"kafka_consumer_messages_received_total",
		"Total number of Kafka messages received (fetched from broker)",
	)
	ConsumerMessagesProcessed = consumerCounter(
		"kafka_consumer_messages_processed_total",
		"Total number of successfully processed Kafka messages",
	)
	ConsumerMessagesFailed = consumerCounter(
		"kafka_consumer_messages_failed_total",
		"Total number of Kafka messages that failed all retries (sent to DLQ or dropped)",
	)
	ConsumerMessagesDuplicate = consumerCounter(
		"kafka_consumer_messages_duplicate_total",
		"Total number of duplicate Kafka messages skipped by idempotency guard",
	)
	ConsumerDLQPublished = consumerCounter(
		"kafka_consumer_dlq_published_total",
		"Total number of messages published to dead-letter queue",
	)
	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)
)

// Producer side.
var (
	ProducerMessagesPublished = producerCounter(
		"kafka_producer_messages_published_total",
		"Total number of Kafka messages published",
	)
	ProducerPublishErrors = producerCounter(
		"kafka_producer_publish_errors_total",
		"Total number of Kafka publish errors",
	)
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
