package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PublishRecord marks an enriched event as durably appended to the output
// topic. It is keyed by the event's publish key.
type PublishRecord struct {
	IdempotencyKey string
	PaymentID      string
	CustomerID     int64
	Topic          string
	PublishedAt    time.Time
}

// PublishKey identifies one logical publish of the event: the idempotency key
// when the upstream producer set one, otherwise a digest of the source event.
// Lifecycle events of the same payment share a payment id, so the payment id
// alone cannot serve as the key.
func (e EnrichedPaymentEvent) PublishKey() string {
	if e.IdempotencyKey != "" {
		return e.IdempotencyKey
	}
	return e.PaymentEvent.Digest()
}

// Digest is a stable fingerprint of every field of the event. The customer
// snapshot of an enriched event is not part of it.
func (e PaymentEvent) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "%q|%q|%d|%d|%d|%q|%d|%d",
		e.PaymentID,
		e.IdempotencyKey,
		e.CustomerID,
		e.MerchantID,
		e.PaymentData.Amount,
		e.PaymentData.Currency,
		e.PaymentData.PaymentStatus,
		createdAtNanos(e.PaymentData.CreatedAt),
	)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func createdAtNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
