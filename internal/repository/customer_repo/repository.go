package customer_repo

import (
	"context"

	"paynotify/internal/domain"
)

// CustomerRepository is the reference data gateway. GetCustomer returns an
// error wrapping domain.ErrCustomerNotFound when the id is unknown.
type CustomerRepository interface {
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
}
