// Package notify publishes anomaly events to external systems.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event describes one detected anomaly.
type Event struct {
	ReadingID      int64     `json:"reading_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	HeartRate      int       `json:"heart_rate"`
	BloodOxygen    int       `json:"blood_oxygen"`
	Status         string    `json:"status"`
	Recommendation string    `json:"recommendation"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string      `mapstructure:"brokers" yaml:"brokers,omitempty"`
	Topic        string        `mapstructure:"topic" yaml:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// Validate reports missing settings when the publisher is enabled.
func (c KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 || c.Topic == "" {
		return errors.New("notify.kafka requires brokers and topic")
	}
	return nil
}

// messageWriter is the subset of *kafka.Writer used by Kafka.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by reading ID.
type Kafka struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafka creates a publisher. Connections are made lazily on first write.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}
	return &Kafka{writer: w, timeout: timeout}, nil
}

// Notify publishes e, giving up after the configured write timeout.
func (k *Kafka) Notify(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.ReadingID, 10)),
		Value: value,
		Time:  e.Timestamp,
	})
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
