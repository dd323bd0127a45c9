package enrichment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"paynotify/internal/domain"
	"paynotify/internal/repository/customer_repo"
)

type EnrichmentService interface {
	Enrich(ctx context.Context, event domain.PaymentEvent) (domain.EnrichedPaymentEvent, error)
}

type enrichmentService struct {
	customers customer_repo.CustomerRepository
	logger    *zap.Logger
}

func NewEnrichmentService(customers customer_repo.CustomerRepository, logger *zap.Logger) EnrichmentService {
	return &enrichmentService{
		customers: customers,
		logger:    logger,
	}
}

// Enrich looks up the event's customer and embeds it. A missing customer is
// reported as domain.ErrCustomerNotFound so the caller retries: the customer
// may be inserted later.
func (s *enrichmentService) Enrich(ctx context.Context, event domain.PaymentEvent) (domain.EnrichedPaymentEvent, error) {
	s.logger.Debug("Enriching payment event with customer data",
		zap.String("payment_id", event.PaymentID),
		zap.Int64("customer_id", event.CustomerID),
	)

	customer, err := s.customers.GetCustomer(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			s.logger.Warn("Customer not found for payment event",
				zap.String("payment_id", event.PaymentID),
				zap.Int64("customer_id", event.CustomerID),
			)
		}
		return domain.EnrichedPaymentEvent{}, fmt.Errorf("failed to enrich payment %s: %w", event.PaymentID, err)
	}
	if customer.ID != event.CustomerID {
		return domain.EnrichedPaymentEvent{}, fmt.Errorf("customer lookup for %d returned customer %d", event.CustomerID, customer.ID)
	}

	enriched := domain.NewEnrichedPaymentEvent(event, *customer)

	s.logger.Debug("Successfully enriched payment event",
		zap.String("payment_id", event.PaymentID),
		zap.Int64("customer_id", customer.ID),
		zap.String("customer_email", customer.Email),
	)
	return enriched, nil
}
