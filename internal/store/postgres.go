// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"videostore/internal/customers"
	"videostore/internal/eventstore"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// maxAttempts bounds how often a unit of work is replayed after a
// serialization failure or deadlock.
const maxAttempts = 3

// Postgres is the relational backend.
type Postgres struct {
	db     *sql.DB
	events *eventstore.EventStore
	tracer trace.Tracer
	log    *zap.Logger
}

// Connect opens and verifies a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func NewPostgres(db *sql.DB, log *zap.Logger) *Postgres {
	return &Postgres{
		db:     db,
		events: eventstore.New(),
		tracer: otel.Tracer("videostore/store"),
		log:    log,
	}
}

// Migrate applies the embedded schema migrations.
func (p *Postgres) Migrate() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(p.db, &migratepg.Config{
		MigrationsTable: "videostore_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Customers() customers.Repository { return &pgCustomers{p: p} }

func (p *Postgres) Videos() videos.Repository { return &pgVideos{p: p} }

func (p *Postgres) Rentals() rentals.Repository { return &pgRentals{p: p} }

// withinTx runs fn in a serializable transaction, replaying it when
// Postgres reports a serialization failure or a deadlock.
func (p *Postgres) withinTx(ctx context.Context, name string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, span := p.tracer.Start(ctx, "store."+name)
	defer span.End()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = p.runTx(ctx, fn)
		if err == nil || !retryable(err) {
			break
		}
		span.AddEvent("tx.retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
		p.log.Debug("retrying unit of work",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil && !isClassified(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Postgres) runTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}
