package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paynotify/internal/app/enrichment"
	"paynotify/internal/app/republish"
	"paynotify/internal/codec"
	"paynotify/internal/domain"
	kafka_infra "paynotify/internal/infrastructure/kafka"
)

type PaymentEventDecoder interface {
	DecodePaymentEvent(data []byte, fields ...zap.Field) codec.Result[domain.PaymentEvent]
}

// PaymentEventMessageHandler enriches each PaymentEvent with its customer and
// republishes it keyed by customer id. Malformed records are acknowledged
// without processing.
func PaymentEventMessageHandler(decoder PaymentEventDecoder, enricher enrichment.EnrichmentService, publisher republish.Publisher, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		result := decoder.DecodePaymentEvent(msg.Value, recordFields(msg)...)
		if result.Malformed() {
			return nil
		}
		event := result.Event

		logger.Info("Received PaymentEvent",
			zap.String("payment_id", event.PaymentID),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.Int64("customer_id", event.CustomerID),
			zap.Int64("merchant_id", event.MerchantID),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)

		enriched, err := enricher.Enrich(ctx, event)
		if err != nil {
			return err
		}
		if err := publisher.Publish(ctx, enriched); err != nil {
			return err
		}

		logger.Info("Successfully processed PaymentEvent",
			zap.String("payment_id", event.PaymentID),
			zap.Int64("customer_id", event.CustomerID),
		)
		return nil
	}
}

func recordFields(msg kafka.Message) []zap.Field {
	return []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}
}
