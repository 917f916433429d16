// internal/store/postgres_catalog.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"videostore/internal/customers"
	"videostore/internal/videos"
)

type scanner interface {
	Scan(dest ...any) error
}

const customerColumns = `id, name, postal_code, phone, registered_at, videos_checked_out_count`

func scanCustomer(row scanner) (*customers.Customer, error) {
	var c customers.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.PostalCode, &c.Phone, &c.RegisteredAt, &c.VideosCheckedOutCount); err != nil {
		return nil, err
	}
	c.RegisteredAt = c.RegisteredAt.UTC()
	return &c, nil
}

const videoColumns = `id, title, release_date, total_inventory, available_inventory`

func scanVideo(row scanner) (*videos.Video, error) {
	var v videos.Video
	if err := row.Scan(&v.ID, &v.Title, &v.ReleaseDate, &v.TotalInventory, &v.AvailableInventory); err != nil {
		return nil, err
	}
	v.ReleaseDate = v.ReleaseDate.UTC()
	return &v, nil
}

func lockCustomer(ctx context.Context, tx *sql.Tx, id int64) (*customers.Customer, error) {
	c, err := scanCustomer(tx.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customers.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock customer %d: %w", id, err)
	}
	return c, nil
}

func lockVideo(ctx context.Context, tx *sql.Tx, id int64) (*videos.Video, error) {
	v, err := scanVideo(tx.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, videos.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock video %d: %w", id, err)
	}
	return v, nil
}

// pgCustomers implements customers.Repository.
type pgCustomers struct {
	p *Postgres
}

func (r *pgCustomers) List(ctx context.Context, opts customers.ListOptions) ([]*customers.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	if opts.SortByName {
		query += ` ORDER BY name ASC, id ASC`
	} else {
		query += ` ORDER BY id ASC`
	}
	var args []any
	if opts.Paged() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var list []*customers.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *pgCustomers) Get(ctx context.Context, id int64) (*customers.Customer, error) {
	c, err := scanCustomer(r.p.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customers.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return c, nil
}

func (r *pgCustomers) Create(ctx context.Context, c *customers.Customer) error {
	query := `
		INSERT INTO customers (name, postal_code, phone, registered_at, videos_checked_out_count)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`
	if err := r.p.db.QueryRowContext(ctx, query, c.Name, c.PostalCode, c.Phone, c.RegisteredAt).Scan(&c.ID); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	c.VideosCheckedOutCount = 0
	return nil
}

func (r *pgCustomers) Update(ctx context.Context, id int64, apply func(*customers.Customer) error) (*customers.Customer, error) {
	var updated *customers.Customer
	err := r.p.withinTx(ctx, "update_customer", func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(c); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE customers SET name = $2, postal_code = $3, phone = $4 WHERE id = $1`,
			c.ID, c.Name, c.PostalCode, c.Phone); err != nil {
			return fmt.Errorf("update customer %d: %w", id, err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *pgCustomers) Delete(ctx context.Context, id int64) (*customers.Customer, error) {
	var deleted *customers.Customer
	err := r.p.withinTx(ctx, "delete_customer", func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCustomer(ctx, tx, id)
		if err != nil {
			return err
		}
		open, err := countOpen(ctx, tx, "customer_id", id)
		if err != nil {
			return err
		}
		if open > 0 {
			return customers.HasOpenRentals(id, open)
		}
		if err := dropJournal(ctx, tx, "customer_id", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete customer %d: %w", id, err)
		}
		deleted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// pgVideos implements videos.Repository.
type pgVideos struct {
	p *Postgres
}

func (r *pgVideos) List(ctx context.Context) ([]*videos.Video, error) {
	rows, err := r.p.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var list []*videos.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (r *pgVideos) Get(ctx context.Context, id int64) (*videos.Video, error) {
	v, err := scanVideo(r.p.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, videos.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return v, nil
}

func (r *pgVideos) Create(ctx context.Context, v *videos.Video) error {
	query := `
		INSERT INTO videos (title, release_date, total_inventory, available_inventory)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.p.db.QueryRowContext(ctx, query, v.Title, v.ReleaseDate, v.TotalInventory, v.AvailableInventory).Scan(&v.ID); err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *pgVideos) Update(ctx context.Context, id int64, apply func(*videos.Video) error) (*videos.Video, error) {
	var updated *videos.Video
	err := r.p.withinTx(ctx, "update_video", func(ctx context.Context, tx *sql.Tx) error {
		v, err := lockVideo(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(v); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE videos
			SET title = $2, release_date = $3, total_inventory = $4, available_inventory = $5
			WHERE id = $1
		`, v.ID, v.Title, v.ReleaseDate, v.TotalInventory, v.AvailableInventory); err != nil {
			return fmt.Errorf("update video %d: %w", id, err)
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *pgVideos) Delete(ctx context.Context, id int64) (*videos.Video, error) {
	var deleted *videos.Video
	err := r.p.withinTx(ctx, "delete_video", func(ctx context.Context, tx *sql.Tx) error {
		v, err := lockVideo(ctx, tx, id)
		if err != nil {
			return err
		}
		open, err := countOpen(ctx, tx, "video_id", id)
		if err != nil {
			return err
		}
		if open > 0 {
			return videos.HasOpenRentals(id, open)
		}
		if err := dropJournal(ctx, tx, "video_id", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete video %d: %w", id, err)
		}
		deleted = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// countOpen counts open rentals whose column equals id. column is one of
// the two fixed foreign key names.
func countOpen(ctx context.Context, tx *sql.Tx, column string, id int64) (int, error) {
	var open int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE `+column+` = $1 AND checked_out`, id).Scan(&open)
	if err != nil {
		return 0, fmt.Errorf("count open rentals: %w", err)
	}
	return open, nil
}

// dropJournal removes the journal of the rentals that are about to be
// cascaded away with their customer or video.
func dropJournal(ctx context.Context, tx *sql.Tx, column string, id int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM events
		WHERE aggregate_type = $1
		AND aggregate_id IN (SELECT id FROM rentals WHERE `+column+` = $2)
	`, aggregateRental, id)
	if err != nil {
		return fmt.Errorf("delete rental journal: %w", err)
	}
	return nil
}
