package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavitra93/go-multi-tenant-saas/shared/models"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/segmentio/kafka-go"
)

// LogWriter is the slice of the repository DBSink needs
type LogWriter interface {
	InsertAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// DBSink writes entries straight into the audit_logs table
type DBSink struct {
	store LogWriter
}

func NewDBSink(store LogWriter) *DBSink {
	return &DBSink{store: store}
}

func (s *DBSink) Write(ctx context.Context, e Entry) error {
	return s.store.InsertAuditLog(ctx, e.ToModel())
}

func (s *DBSink) Close() error {
	return nil
}

// MessageWriter is the part of *kafka.Writer KafkaSink uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes entries as JSON, keyed by tenant so one tenant's events stay ordered
type KafkaSink struct {
	writer  MessageWriter
	topic   string
	breaker *utils.CircuitBreaker
}

// NewKafkaWriter builds the producer used by KafkaSink
func NewKafkaWriter(broker string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
}

func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{
		writer:  writer,
		topic:   topic,
		breaker: utils.NewCircuitBreaker("kafka-audit", 5, 30*time.Second),
	}
}

func (s *KafkaSink) Write(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	key := "platform"
	if e.TenantID != nil {
		key = e.TenantID.String()
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("audit")},
			{Key: "action", Value: []byte(e.Action)},
		},
	}

	return s.breaker.Call(func() error {
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to write audit event to Kafka: %w", err)
		}
		return nil
	})
}

func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Decode parses a message produced by KafkaSink
func Decode(value []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode audit event: %w", err)
	}
	if e.Action == "" {
		return Entry{}, fmt.Errorf("audit event without action")
	}
	return e, nil
}
