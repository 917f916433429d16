// internal/rentals/domain.go
package rentals

import (
	"encoding/json"
	"time"

	"videostore/internal/apperr"
)

// State is the lifecycle position of a rental.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Rental links a customer to one copy of a video from check-out to check-in.
type Rental struct {
	ID           int64      `json:"id"`
	CustomerID   int64      `json:"customer_id"`
	VideoID      int64      `json:"video_id"`
	CheckedOut   bool       `json:"checked_out"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	DueDate      time.Time  `json:"due_date"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}

// Open starts a rental. It is the only way a rental enters the open state.
func Open(customerID, videoID int64, now time.Time, period time.Duration) *Rental {
	now = now.UTC()
	return &Rental{
		CustomerID:   customerID,
		VideoID:      videoID,
		CheckedOut:   true,
		CheckedOutAt: now,
		DueDate:      now.Add(period),
	}
}

// State derives the lifecycle state from the checked-out flag.
func (r *Rental) State() State {
	if r.CheckedOut {
		return StateOpen
	}
	return StateClosed
}

// Close ends an open rental. Closed is terminal.
func (r *Rental) Close(now time.Time) error {
	if r.State() != StateOpen {
		return apperr.New(apperr.AlreadyClosed, "Rental %d is already checked in", r.ID)
	}
	returned := now.UTC()
	r.CheckedOut = false
	r.ReturnedAt = &returned
	return nil
}

// FindOpen returns the first open rental of videoID, examining every rental
// before giving up.
func FindOpen(rentals []*Rental, videoID int64) *Rental {
	for _, r := range rentals {
		if r.VideoID == videoID && r.State() == StateOpen {
			return r
		}
	}
	return nil
}

// NotFound reports a rental lookup miss.
func NotFound(id int64) error {
	return apperr.New(apperr.NotFound, "Rental %d was not found", id)
}

// Receipt is the answer to a successful check-out.
type Receipt struct {
	*Rental
	VideosCheckedOutCount int `json:"videos_checked_out_count"`
	AvailableInventory    int `json:"available_inventory"`
}

// Summary is the answer to a successful check-in.
type Summary struct {
	CustomerID            int64 `json:"customer_id"`
	VideoID               int64 `json:"video_id"`
	VideosCheckedOutCount int   `json:"videos_checked_out_count"`
	AvailableInventory    int   `json:"available_inventory"`
}

// CustomerRental is an open rental seen from the customer's side.
type CustomerRental struct {
	RentalID    int64     `json:"-"`
	Title       string    `json:"title"`
	ReleaseDate time.Time `json:"release_date"`
	DueDate     time.Time `json:"due_date"`
}

// VideoRenter is an open rental seen from the video's side.
type VideoRenter struct {
	RentalID   int64     `json:"-"`
	Name       string    `json:"name"`
	PostalCode string    `json:"postal_code"`
	Phone      string    `json:"phone"`
	DueDate    time.Time `json:"due_date"`
}

// Journal event types.
const (
	EventRentalOpened = "RentalOpened"
	EventRentalClosed = "RentalClosed"
)

// Event is one entry of a rental's journal.
type Event struct {
	ID        int64           `json:"id"`
	RentalID  int64           `json:"rental_id"`
	Type      string          `json:"event_type"`
	Data      json.RawMessage `json:"event_data"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
}

// RentalOpenedEvent is journaled when a video is checked out.
type RentalOpenedEvent struct {
	RentalID   int64     `json:"rental_id"`
	CustomerID int64     `json:"customer_id"`
	VideoID    int64     `json:"video_id"`
	DueDate    time.Time `json:"due_date"`
}

// RentalClosedEvent is journaled when a video is checked in.
type RentalClosedEvent struct {
	RentalID   int64     `json:"rental_id"`
	CustomerID int64     `json:"customer_id"`
	VideoID    int64     `json:"video_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// Audit counts the rows that break the inventory and counter invariants.
type Audit struct {
	Videos            int `json:"videos"`
	Customers         int `json:"customers"`
	OpenRentals       int `json:"open_rentals"`
	InventoryDrift    int `json:"inventory_drift"`
	NegativeInventory int `json:"negative_inventory"`
	CounterDrift      int `json:"counter_drift"`
}

// Consistent reports whether no invariant violation was found.
func (a *Audit) Consistent() bool {
	return a.InventoryDrift == 0 && a.NegativeInventory == 0 && a.CounterDrift == 0
}
