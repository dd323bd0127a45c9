package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paynotify/internal/domain"
)

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	query := `
		SELECT id, email, name
		FROM customers
		WHERE id = $1
	`
	customer := &domain.Customer{}
	err := r.db.QueryRowContext(ctx, query, customerID).Scan(
		&customer.ID,
		&customer.Email,
		&customer.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, domain.ErrCustomerNotFound)
		}
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}
	return customer, nil
}
