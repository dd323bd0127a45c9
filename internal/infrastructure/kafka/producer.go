package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultBatchTimeout = 10 * time.Millisecond
)

type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaProducer struct {
	writer       messageWriter
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewProducer returns a synchronous producer: Produce returns only after all
// in-sync replicas acknowledged the record. Records are partitioned by a hash
// of their key.
func NewProducer(brokerURLs []string, logger *zap.Logger) Producer {
	return newProducer(newWriter(brokerURLs, logger), defaultWriteTimeout, logger)
}

// newWriter makes exactly one write attempt per Produce call. kafka-go has no
// producer ids or sequence numbers, so an internal retry after a lost
// acknowledgement would append the record a second time. Retrying is left to
// the caller.
func newWriter(brokerURLs []string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokerURLs...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: defaultWriteTimeout,
		BatchTimeout: defaultBatchTimeout,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  1,
		Async:        false,
		Logger:       debugLogger(logger),
		ErrorLogger:  errorLogger(logger),
	}
}

func newProducer(writer messageWriter, writeTimeout time.Duration, logger *zap.Logger) *kafkaProducer {
	return &kafkaProducer{
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (p *kafkaProducer) Produce(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, msg); err != nil {
		p.logger.Error("Failed to produce message to Kafka",
			zap.String("topic", topic),
			zap.Binary("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	p.logger.Debug("Message produced to Kafka successfully",
		zap.String("topic", topic),
		zap.Binary("key", key),
	)
	return nil
}

func (p *kafkaProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed.")
	return nil
}
