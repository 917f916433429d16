// internal/customers/service.go
package customers

import (
	"context"
)

// Service defines the interface for the customer service.
type Service interface {
	ListCustomers(ctx context.Context, opts ListOptions) ([]*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	RegisterCustomer(ctx context.Context, name, postalCode, phone string) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, name, postalCode, phone string) (*Customer, error)
	DeleteCustomer(ctx context.Context, id int64) (*Customer, error)
}

// Repository persists customers. Get, Update and Delete report a missing
// customer as an apperr.NotFound error; Delete refuses customers with open
// rentals with apperr.HasOpenRentals.
type Repository interface {
	List(ctx context.Context, opts ListOptions) ([]*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, id int64, apply func(*Customer) error) (*Customer, error)
	Delete(ctx context.Context, id int64) (*Customer, error)
}
