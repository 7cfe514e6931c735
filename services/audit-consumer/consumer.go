package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavitra93/go-multi-tenant-saas/shared/audit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const consumerGroup = "audit-consumer"

var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saas_audit_consumer_messages_total",
		Help: "Audit messages consumed from Kafka by outcome",
	},
	[]string{"result"},
)

// MessageReader is the part of *kafka.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader creates the group reader for the audit topic
func NewKafkaReader(broker, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        consumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
}

// Consumer persists audit events published by the API
type Consumer struct {
	reader     MessageReader
	sink       audit.Sink
	maxRetries int
	backoff    time.Duration
}

func NewConsumer(reader MessageReader, sink audit.Sink) *Consumer {
	return &Consumer{reader: reader, sink: sink, maxRetries: 5, backoff: time.Second}
}

// Run consumes until ctx is cancelled. A message is committed only after it was
// written or found to be undecodable.
func (c *Consumer) Run(ctx context.Context) error {
	logrus.Info("Starting audit events consumer...")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.WithError(err).Error("failed to fetch audit message")
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		if err := c.handleMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logrus.WithError(err).WithField("offset", msg.Offset).Warn("failed to commit audit message")
		}
	}
}

// handleMessage writes one message. Undecodable messages are skipped; write failures are
// retried with a growing delay and then returned.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	entry, err := audit.Decode(msg.Value)
	if err != nil {
		messagesTotal.WithLabelValues("skipped").Inc()
		logrus.WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"error":     err,
		}).Warn("skipping undecodable audit message")
		return nil
	}

	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err = c.sink.Write(ctx, entry)
		if err == nil || errors.Is(err, gorm.ErrDuplicatedKey) {
			// redelivered messages keep their id, so a duplicate means it is already stored
			messagesTotal.WithLabelValues("written").Inc()
			return nil
		}
		if attempt >= c.maxRetries {
			messagesTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to store audit event %s after %d attempts: %w", entry.ID, attempt, err)
		}
		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"action":  entry.Action,
			"error":   err,
		}).Warn("audit write failed, retrying")
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
	}
}

// Close closes the reader and the sink
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close audit reader: %w", err)
	}
	return c.sink.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
