// internal/customers/domain.go
package customers

import (
	"fmt"
	"time"

	"videostore/internal/apperr"
)

// Customer is a registered store customer.
type Customer struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	PostalCode            string    `json:"postal_code"`
	Phone                 string    `json:"phone"`
	RegisteredAt          time.Time `json:"registered_at"`
	VideosCheckedOutCount int       `json:"videos_checked_out_count"`
}

// Borrow records one more video in the customer's possession.
func (c *Customer) Borrow() {
	c.VideosCheckedOutCount++
}

// Return records a video coming back. The counter never drops below zero.
func (c *Customer) Return() error {
	if c.VideosCheckedOutCount <= 0 {
		return fmt.Errorf("customer %d has no videos checked out", c.ID)
	}
	c.VideosCheckedOutCount--
	return nil
}

// ListOptions controls the ordering and paging of a customer listing.
// Sorting is applied before paging.
type ListOptions struct {
	SortByName bool
	Page       int
	PageSize   int
}

// Paged reports whether the listing is limited to one page.
func (o ListOptions) Paged() bool {
	return o.PageSize > 0
}

// Offset is the number of customers skipped before the requested page.
func (o ListOptions) Offset() int {
	if !o.Paged() || o.Page <= 1 {
		return 0
	}
	return (o.Page - 1) * o.PageSize
}

// NotFound reports a customer lookup miss.
func NotFound(id int64) error {
	return apperr.New(apperr.NotFound, "Customer %d was not found", id)
}

// HasOpenRentals reports a customer that still holds videos.
func HasOpenRentals(id int64, open int) error {
	return apperr.New(apperr.HasOpenRentals, "Customer %d has %d open rentals", id, open)
}
