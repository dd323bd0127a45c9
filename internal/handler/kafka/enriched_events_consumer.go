package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paynotify/internal/app/webhook"
	"paynotify/internal/codec"
	"paynotify/internal/domain"
	kafka_infra "paynotify/internal/infrastructure/kafka"
)

type EnrichedEventDecoder interface {
	DecodeEnrichedPaymentEvent(data []byte, fields ...zap.Field) codec.Result[domain.EnrichedPaymentEvent]
	RenderJSON(event domain.EnrichedPaymentEvent) ([]byte, error)
}

// EnrichedPaymentEventMessageHandler delivers each EnrichedPaymentEvent as
// JSON to its merchant's subscription endpoint. Any failed delivery is
// returned so the record is redelivered.
func EnrichedPaymentEventMessageHandler(decoder EnrichedEventDecoder, resolver webhook.SubscriptionResolver, notifier webhook.Notifier, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		result := decoder.DecodeEnrichedPaymentEvent(msg.Value, recordFields(msg)...)
		if result.Malformed() {
			return nil
		}
		event := result.Event

		logger.Info("Received EnrichedPaymentEvent",
			zap.String("payment_id", event.PaymentID),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.Int64("customer_id", event.CustomerID),
			zap.Int64("merchant_id", event.MerchantID),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)

		payload, err := decoder.RenderJSON(event)
		if err != nil {
			// Rendering is deterministic, redelivery cannot fix it.
			logger.Error("Failed to render EnrichedPaymentEvent as JSON, skipping record",
				zap.String("payment_id", event.PaymentID),
				zap.Error(err),
			)
			return nil
		}

		subscriptionURL, err := resolver.Resolve(ctx, event.MerchantID)
		if err != nil {
			return fmt.Errorf("failed to resolve subscription for merchant %d: %w", event.MerchantID, err)
		}

		logger.Info("Sending EnrichedPaymentEvent data to subscription URL",
			zap.String("payment_id", event.PaymentID),
			zap.String("subscription_url", subscriptionURL),
		)
		attempt, err := notifier.Notify(ctx, subscriptionURL, payload)
		if err != nil {
			return fmt.Errorf("failed to deliver payment %s: %w", event.PaymentID, err)
		}

		logger.Info("EnrichedPaymentEvent delivered",
			zap.String("payment_id", event.PaymentID),
			zap.String("delivery_id", attempt.ID),
			zap.Int("status_code", attempt.StatusCode),
		)
		return nil
	}
}
