package domain

// EnrichedPaymentEvent carries every PaymentEvent field verbatim plus the
// customer as it was at enrichment time. CustomerID always equals Customer.ID.
type EnrichedPaymentEvent struct {
	PaymentEvent
	Customer Customer
}

// NewEnrichedPaymentEvent builds an enriched event from its source event and
// customer snapshot.
func NewEnrichedPaymentEvent(event PaymentEvent, customer Customer) EnrichedPaymentEvent {
	return EnrichedPaymentEvent{
		PaymentEvent: event,
		Customer:     customer,
	}
}
