// Package testutil builds payment fixtures shared by package tests.
package testutil

import (
	"time"

	"paynotify/internal/domain"
)

const (
	DefaultPaymentID  = "pay_123"
	DefaultCustomerID = int64(123)
	DefaultMerchantID = int64(456)
	DefaultAmount     = int64(10000)
	DefaultCurrency   = "USD"
	DefaultEmail      = "john.doe@example.com"
	DefaultName       = "John Doe"
)

var DefaultCreatedAt = time.Date(2025, time.March, 17, 23, 0, 0, 0, time.UTC)

func PaymentEvent() domain.PaymentEvent {
	return PaymentEventFor(DefaultPaymentID, DefaultCustomerID, DefaultMerchantID)
}

func PaymentEventFor(paymentID string, customerID, merchantID int64) domain.PaymentEvent {
	return domain.PaymentEvent{
		PaymentID:      paymentID,
		IdempotencyKey: paymentID + "-2025-02-22T10:15:30Z",
		CustomerID:     customerID,
		MerchantID:     merchantID,
		PaymentData: domain.PaymentData{
			Amount:        DefaultAmount,
			Currency:      DefaultCurrency,
			PaymentStatus: domain.PaymentStatusCompleted,
			CreatedAt:     DefaultCreatedAt,
		},
	}
}

func Customer(id int64) domain.Customer {
	return domain.Customer{ID: id, Email: DefaultEmail, Name: DefaultName}
}

func EnrichedPaymentEvent() domain.EnrichedPaymentEvent {
	return domain.NewEnrichedPaymentEvent(PaymentEvent(), Customer(DefaultCustomerID))
}
