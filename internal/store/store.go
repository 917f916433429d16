// internal/store/store.go
package store

import (
	"context"

	"videostore/internal/apperr"
	"videostore/internal/customers"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

// Backend is a persistence store serving the three repositories.
type Backend interface {
	Customers() customers.Repository
	Videos() videos.Repository
	Rentals() rentals.Repository
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*Postgres)(nil)
	_ Backend = (*Memory)(nil)
)

// aggregateRental is the journal aggregate type of rentals.
const aggregateRental = "rental"

func isClassified(err error) bool {
	return apperr.KindOf(err) != ""
}
