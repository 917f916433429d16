// internal/store/postgres_rentals.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"

	"videostore/internal/customers"
	"videostore/internal/eventstore"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

// pgRentals implements rentals.Repository.
type pgRentals struct {
	p *Postgres
}

func (r *pgRentals) WithinTx(ctx context.Context, fn func(ctx context.Context, tx rentals.Tx) error) error {
	return r.p.withinTx(ctx, "rental_tx", func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &pgTx{tx: tx, events: r.p.events})
	})
}

func (r *pgRentals) CustomerRentals(ctx context.Context, customerID int64) ([]rentals.CustomerRental, error) {
	if err := r.mustExist(ctx, "customers", customerID, customers.NotFound(customerID)); err != nil {
		return nil, err
	}

	rows, err := r.p.db.QueryContext(ctx, `
		SELECT r.id, v.title, v.release_date, r.due_date
		FROM rentals r
		JOIN videos v ON v.id = r.video_id
		WHERE r.customer_id = $1 AND r.checked_out
		ORDER BY r.id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query customer rentals: %w", err)
	}
	defer rows.Close()

	var list []rentals.CustomerRental
	for rows.Next() {
		var cr rentals.CustomerRental
		if err := rows.Scan(&cr.RentalID, &cr.Title, &cr.ReleaseDate, &cr.DueDate); err != nil {
			return nil, fmt.Errorf("scan customer rental: %w", err)
		}
		cr.ReleaseDate = cr.ReleaseDate.UTC()
		cr.DueDate = cr.DueDate.UTC()
		list = append(list, cr)
	}
	return list, rows.Err()
}

func (r *pgRentals) VideoRenters(ctx context.Context, videoID int64) ([]rentals.VideoRenter, error) {
	if err := r.mustExist(ctx, "videos", videoID, videos.NotFound(videoID)); err != nil {
		return nil, err
	}

	rows, err := r.p.db.QueryContext(ctx, `
		SELECT r.id, c.name, c.postal_code, c.phone, r.due_date
		FROM rentals r
		JOIN customers c ON c.id = r.customer_id
		WHERE r.video_id = $1 AND r.checked_out
		ORDER BY r.id ASC
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query video renters: %w", err)
	}
	defer rows.Close()

	var list []rentals.VideoRenter
	for rows.Next() {
		var vr rentals.VideoRenter
		if err := rows.Scan(&vr.RentalID, &vr.Name, &vr.PostalCode, &vr.Phone, &vr.DueDate); err != nil {
			return nil, fmt.Errorf("scan video renter: %w", err)
		}
		vr.DueDate = vr.DueDate.UTC()
		list = append(list, vr)
	}
	return list, rows.Err()
}

// mustExist returns missing when table has no row with id.
func (r *pgRentals) mustExist(ctx context.Context, table string, id int64, missing error) error {
	var found int64
	err := r.p.db.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	if err != nil {
		return fmt.Errorf("look up %s %d: %w", table, id, err)
	}
	return nil
}

func (r *pgRentals) Events(ctx context.Context, rentalID int64) ([]rentals.Event, error) {
	stored, err := r.p.events.Load(ctx, r.p.db, aggregateRental, rentalID, 0, 0)
	if err != nil {
		return nil, err
	}
	list := make([]rentals.Event, 0, len(stored))
	for _, e := range stored {
		list = append(list, rentals.Event{
			ID:        e.ID,
			RentalID:  e.AggregateID,
			Type:      e.EventType,
			Data:      e.EventData,
			Version:   e.Version,
			CreatedAt: e.CreatedAt.UTC(),
		})
	}
	return list, nil
}

func (r *pgRentals) Audit(ctx context.Context) (*rentals.Audit, error) {
	var a rentals.Audit
	err := r.p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM videos),
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM rentals WHERE checked_out),
			(SELECT COUNT(*) FROM videos v
				WHERE v.available_inventory <> v.total_inventory -
					(SELECT COUNT(*) FROM rentals r WHERE r.video_id = v.id AND r.checked_out)),
			(SELECT COUNT(*) FROM videos WHERE available_inventory < 0),
			(SELECT COUNT(*) FROM customers c
				WHERE c.videos_checked_out_count <>
					(SELECT COUNT(*) FROM rentals r WHERE r.customer_id = c.id AND r.checked_out))
	`).Scan(&a.Videos, &a.Customers, &a.OpenRentals, &a.InventoryDrift, &a.NegativeInventory, &a.CounterDrift)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	return &a, nil
}

// pgTx implements rentals.Tx on a serializable transaction.
type pgTx struct {
	tx     *sql.Tx
	events *eventstore.EventStore
}

func (t *pgTx) LockCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	return lockCustomer(ctx, t.tx, id)
}

func (t *pgTx) LockVideo(ctx context.Context, id int64) (*videos.Video, error) {
	return lockVideo(ctx, t.tx, id)
}

func (t *pgTx) RentalsOf(ctx context.Context, customerID int64) ([]*rentals.Rental, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, customer_id, video_id, checked_out, checked_out_at, due_date, returned_at
		FROM rentals
		WHERE customer_id = $1
		ORDER BY id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query rentals: %w", err)
	}
	defer rows.Close()

	var list []*rentals.Rental
	for rows.Next() {
		var rental rentals.Rental
		var returned sql.NullTime
		if err := rows.Scan(&rental.ID, &rental.CustomerID, &rental.VideoID, &rental.CheckedOut,
			&rental.CheckedOutAt, &rental.DueDate, &returned); err != nil {
			return nil, fmt.Errorf("scan rental: %w", err)
		}
		if returned.Valid {
			at := returned.Time.UTC()
			rental.ReturnedAt = &at
		}
		list = append(list, &rental)
	}
	return list, rows.Err()
}

func (t *pgTx) InsertRental(ctx context.Context, rental *rentals.Rental) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO rentals (customer_id, video_id, checked_out, checked_out_at, due_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rental.CustomerID, rental.VideoID, rental.CheckedOut, rental.CheckedOutAt, rental.DueDate).Scan(&rental.ID)
}

func (t *pgTx) SaveRental(ctx context.Context, rental *rentals.Rental) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE rentals SET checked_out = $2, returned_at = $3 WHERE id = $1`,
		rental.ID, rental.CheckedOut, rental.ReturnedAt)
	return err
}

func (t *pgTx) SaveInventory(ctx context.Context, v *videos.Video) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE videos SET available_inventory = $2 WHERE id = $1`, v.ID, v.AvailableInventory)
	return err
}

func (t *pgTx) SaveCheckedOutCount(ctx context.Context, c *customers.Customer) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET videos_checked_out_count = $2 WHERE id = $1`, c.ID, c.VideosCheckedOutCount)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, rentalID int64, expectedVersion int, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	event := eventstore.Event{EventType: eventType, EventData: payload}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		event.Metadata = map[string]any{"request_id": reqID}
	}
	return t.events.Append(ctx, t.tx, aggregateRental, rentalID, expectedVersion, []eventstore.Event{event})
}
