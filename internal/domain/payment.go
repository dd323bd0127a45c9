package domain

import "time"

type PaymentStatus int32

const (
	PaymentStatusUnspecified PaymentStatus = 0
	PaymentStatusPending     PaymentStatus = 1
	PaymentStatusCompleted   PaymentStatus = 2
	PaymentStatusFailed      PaymentStatus = 3
	PaymentStatusRefunded    PaymentStatus = 4
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentStatusUnspecified: "PAYMENT_STATUS_UNSPECIFIED",
	PaymentStatusPending:     "PAYMENT_PENDING",
	PaymentStatusCompleted:   "PAYMENT_COMPLETED",
	PaymentStatusFailed:      "PAYMENT_FAILED",
	PaymentStatusRefunded:    "PAYMENT_REFUNDED",
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return "PAYMENT_STATUS_UNKNOWN"
}

// PaymentData is the monetary payload of a payment lifecycle event.
// Amount is expressed in minor units of Currency. CreatedAt is an instant;
// decoded values are always in UTC.
type PaymentData struct {
	Amount        int64
	Currency      string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

// PaymentEvent is produced upstream and consumed from the payment events topic.
type PaymentEvent struct {
	PaymentID      string
	IdempotencyKey string
	CustomerID     int64
	MerchantID     int64
	PaymentData    PaymentData
}
