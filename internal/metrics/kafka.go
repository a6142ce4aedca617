package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// LatencyEvent is the JSON message written for each observation.
type LatencyEvent struct {
	Metric string    `json:"metric"`
	Tag    string    `json:"tag"`
	Millis float64   `json:"millis"`
	At     time.Time `json:"at"`
}

// KafkaReporterConfig holds configuration for the Kafka latency stream.
type KafkaReporterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1, or -1 (all)
	Logger       *log.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter publishes latency events to a Kafka topic. The writer is
// asynchronous, so reporting never waits on the brokers.
type KafkaReporter struct {
	writer messageWriter
	logger *log.Logger
}

// NewKafkaReporter creates an asynchronous Kafka writer for latency events.
func NewKafkaReporter(config KafkaReporterConfig) (*KafkaReporter, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	logger.Printf("[METRICS] Kafka latency stream: brokers=%v topic=%s", config.Brokers, config.Topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Printf("[METRICS] WARNING: failed to deliver %d latency events: %v", len(messages), err)
			}
		},
	}

	return &KafkaReporter{writer: writer, logger: logger}, nil
}

// ReportLatency enqueues one event keyed by tag.
func (k *KafkaReporter) ReportLatency(metric string, start time.Time, tag string, _ int) {
	data, err := json.Marshal(LatencyEvent{
		Metric: metric,
		Tag:    tag,
		Millis: elapsedMillis(start),
		At:     time.Now().UTC(),
	})
	if err != nil {
		k.logger.Printf("[METRICS] WARNING: failed to encode latency event: %v", err)
		return
	}

	if err := k.writer.WriteMessages(context.Background(), kafka.Message{Key: []byte(tag), Value: data}); err != nil {
		k.logger.Printf("[METRICS] WARNING: failed to enqueue latency event: %v", err)
	}
}

// Close flushes pending events and closes the writer.
func (k *KafkaReporter) Close() error {
	return k.writer.Close()
}
