// internal/customers/implementation.go
package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"videostore/internal/apperr"
)

// service implements the Service interface.
type service struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

// NewService creates a new customer service instance.
func NewService(repo Repository, log *zap.Logger) Service {
	return &service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// ListCustomers returns customers ordered by id, or by name when requested.
func (s *service) ListCustomers(ctx context.Context, opts ListOptions) ([]*Customer, error) {
	if opts.PageSize < 0 {
		opts.PageSize = 0
	}
	if opts.Paged() && opts.Page < 1 {
		opts.Page = 1
	}
	list, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return list, nil
}

// GetCustomer retrieves a customer by id.
func (s *service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// RegisterCustomer creates a new customer.
func (s *service) RegisterCustomer(ctx context.Context, name, postalCode, phone string) (*Customer, error) {
	name, postalCode, phone, err := normalize(name, postalCode, phone)
	if err != nil {
		return nil, err
	}

	customer := &Customer{
		Name:         name,
		PostalCode:   postalCode,
		Phone:        phone,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	s.log.Info("customer registered", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// UpdateCustomer replaces the editable fields of a customer. The
// registration time and the checked-out counter are left untouched.
func (s *service) UpdateCustomer(ctx context.Context, id int64, name, postalCode, phone string) (*Customer, error) {
	name, postalCode, phone, err := normalize(name, postalCode, phone)
	if err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, id, func(c *Customer) error {
		c.Name = name
		c.PostalCode = postalCode
		c.Phone = phone
		return nil
	})
}

// DeleteCustomer removes a customer without open rentals.
func (s *service) DeleteCustomer(ctx context.Context, id int64) (*Customer, error) {
	customer, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("customer deleted", zap.Int64("customer_id", id))
	return customer, nil
}

func normalize(name, postalCode, phone string) (string, string, string, error) {
	name = strings.TrimSpace(name)
	postalCode = strings.TrimSpace(postalCode)
	phone = strings.TrimSpace(phone)
	if name == "" || postalCode == "" || phone == "" {
		return "", "", "", apperr.New(apperr.InvalidInput, "Invalid data")
	}
	return name, postalCode, phone, nil
}
