package republish

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paynotify/internal/domain"
	"paynotify/internal/repository/ledger_repo"
)

const (
	HeaderIdempotencyKey = "idempotency-key"
	HeaderPaymentID      = "payment-id"
)

type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

type Encoder interface {
	EncodeEnrichedPaymentEvent(event domain.EnrichedPaymentEvent) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.EnrichedPaymentEvent) error
}

type publisher struct {
	producer Producer
	encoder  Encoder
	ledger   ledger_repo.LedgerRepository
	topic    string
	now      func() time.Time
	logger   *zap.Logger
}

func NewPublisher(producer Producer, encoder Encoder, ledger ledger_repo.LedgerRepository, topic string, logger *zap.Logger) Publisher {
	return &publisher{
		producer: producer,
		encoder:  encoder,
		ledger:   ledger,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// PartitionKey encodes a customer id as 8 big-endian bytes so every event of
// one customer lands on the same partition of the output topic.
func PartitionKey(customerID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(customerID))
	return key
}

// Publish appends the enriched event to the output topic at most once per
// publish key. A key already present in the ledger means an earlier attempt
// reached the broker, so the call is a no-op.
func (p *publisher) Publish(ctx context.Context, event domain.EnrichedPaymentEvent) error {
	publishKey := event.PublishKey()

	published, err := p.ledger.IsPublished(ctx, publishKey)
	if err != nil {
		return fmt.Errorf("%w: payment %s: %w", domain.ErrPublishFailed, event.PaymentID, err)
	}
	if published {
		p.logger.Info("Enriched event already published, skipping duplicate",
			zap.String("payment_id", event.PaymentID),
			zap.String("idempotency_key", publishKey),
		)
		return nil
	}

	value, err := p.encoder.EncodeEnrichedPaymentEvent(event)
	if err != nil {
		return fmt.Errorf("%w: payment %s: %w", domain.ErrPublishFailed, event.PaymentID, err)
	}

	p.logger.Info("Sending enriched payment event to topic",
		zap.String("topic", p.topic),
		zap.String("payment_id", event.PaymentID),
		zap.Int64("customer_id", event.CustomerID),
	)
	err = p.producer.Produce(ctx, p.topic, PartitionKey(event.CustomerID), value,
		kafka.Header{Key: HeaderIdempotencyKey, Value: []byte(publishKey)},
		kafka.Header{Key: HeaderPaymentID, Value: []byte(event.PaymentID)},
	)
	if err != nil {
		return fmt.Errorf("%w: payment %s: %w", domain.ErrPublishFailed, event.PaymentID, err)
	}

	record := domain.PublishRecord{
		IdempotencyKey: publishKey,
		PaymentID:      event.PaymentID,
		CustomerID:     event.CustomerID,
		Topic:          p.topic,
		PublishedAt:    p.now(),
	}
	if err := p.ledger.RecordPublished(ctx, record); err != nil {
		// The record is already durable on the topic; failing here would only
		// cause a duplicate append on redelivery.
		p.logger.Error("Failed to record publish in ledger",
			zap.String("payment_id", event.PaymentID),
			zap.String("idempotency_key", publishKey),
			zap.Error(err),
		)
	}
	return nil
}
