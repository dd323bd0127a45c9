package domain

type DeliveryOutcome string

const (
	DeliveryOutcomeDelivered DeliveryOutcome = "DELIVERED"
	DeliveryOutcomeRetryable DeliveryOutcome = "RETRYABLE"
)

// DeliveryAttempt describes a single webhook call. It is never persisted.
type DeliveryAttempt struct {
	ID         string
	Endpoint   string
	Payload    []byte
	StatusCode int
	Outcome    DeliveryOutcome
}
