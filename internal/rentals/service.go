// internal/rentals/service.go
package rentals

import (
	"context"

	"videostore/internal/customers"
	"videostore/internal/videos"
)

// Service defines the interface for the rental service.
type Service interface {
	CheckOut(ctx context.Context, customerID, videoID int64) (*Receipt, error)
	CheckIn(ctx context.Context, customerID, videoID int64) (*Summary, error)
	CustomerRentals(ctx context.Context, customerID int64) ([]CustomerRental, error)
	VideoRenters(ctx context.Context, videoID int64) ([]VideoRenter, error)
	RentalEvents(ctx context.Context, rentalID int64) ([]Event, error)
	Audit(ctx context.Context) (*Audit, error)
}

// Repository is the rental side of the persistence store.
//
// WithinTx runs fn as one unit of work: every write made through tx is
// committed when fn returns nil and discarded otherwise. fn may be invoked
// again when the store detects a conflicting concurrent unit of work, so it
// must not leak side effects other than through tx.
//
// CustomerRentals and VideoRenters list open rentals only and report a
// missing customer or video as an apperr.NotFound error.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	CustomerRentals(ctx context.Context, customerID int64) ([]CustomerRental, error)
	VideoRenters(ctx context.Context, videoID int64) ([]VideoRenter, error)
	Events(ctx context.Context, rentalID int64) ([]Event, error)
	Audit(ctx context.Context) (*Audit, error)
}

// Tx is a unit of work. Lock* calls hold the row until the unit of work
// ends and report a missing row as an apperr.NotFound error.
type Tx interface {
	LockCustomer(ctx context.Context, id int64) (*customers.Customer, error)
	LockVideo(ctx context.Context, id int64) (*videos.Video, error)
	RentalsOf(ctx context.Context, customerID int64) ([]*Rental, error)
	InsertRental(ctx context.Context, r *Rental) error
	SaveRental(ctx context.Context, r *Rental) error
	SaveInventory(ctx context.Context, v *videos.Video) error
	SaveCheckedOutCount(ctx context.Context, c *customers.Customer) error
	AppendEvent(ctx context.Context, rentalID int64, expectedVersion int, eventType string, data any) error
}
