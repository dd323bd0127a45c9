package domain

// Customer is the reference data snapshot embedded into enriched events.
type Customer struct {
	ID    int64
	Email string
	Name  string
}
