// internal/rentals/implementation.go
package rentals

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"videostore/internal/apperr"
)

// DefaultPeriod is the rental period used when none is configured.
const DefaultPeriod = 7 * 24 * time.Hour

// service implements the Service interface.
type service struct {
	repo   Repository
	log    *zap.Logger
	period time.Duration
	now    func() time.Time

	tracer     trace.Tracer
	checkouts  metric.Int64Counter
	checkins   metric.Int64Counter
	rejections metric.Int64Counter
}

// NewService creates a new rental service instance.
func NewService(repo Repository, log *zap.Logger, period time.Duration) Service {
	if period <= 0 {
		period = DefaultPeriod
	}
	s := &service{
		repo:   repo,
		log:    log,
		period: period,
		now:    time.Now,
		tracer: otel.Tracer("videostore/rentals"),
	}
	if err := s.initMetrics(otel.Meter("videostore/rentals")); err != nil {
		log.Warn("rental metrics disabled", zap.Error(err))
		_ = s.initMetrics(noop.NewMeterProvider().Meter("videostore/rentals"))
	}
	return s
}

func (s *service) initMetrics(meter metric.Meter) error {
	var err error
	if s.checkouts, err = meter.Int64Counter("videostore.rentals.checkouts",
		metric.WithDescription("Videos checked out")); err != nil {
		return err
	}
	if s.checkins, err = meter.Int64Counter("videostore.rentals.checkins",
		metric.WithDescription("Videos checked in")); err != nil {
		return err
	}
	if s.rejections, err = meter.Int64Counter("videostore.rentals.rejections",
		metric.WithDescription("Check-outs and check-ins refused")); err != nil {
		return err
	}
	return nil
}

// CheckOut lends one copy of a video to a customer. The inventory, the new
// rental, the customer's counter and the journal entry are committed
// together or not at all.
func (s *service) CheckOut(ctx context.Context, customerID, videoID int64) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "rentals.check_out", trace.WithAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.Int64("video.id", videoID),
	))
	defer span.End()

	var receipt *Receipt
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		customer, err := tx.LockCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		video, err := tx.LockVideo(ctx, videoID)
		if err != nil {
			return err
		}

		if err := video.Reserve(); err != nil {
			return err
		}
		rental := Open(customerID, videoID, s.now(), s.period)
		if err := tx.InsertRental(ctx, rental); err != nil {
			return fmt.Errorf("insert rental: %w", err)
		}
		customer.Borrow()

		if err := tx.SaveInventory(ctx, video); err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
		if err := tx.SaveCheckedOutCount(ctx, customer); err != nil {
			return fmt.Errorf("save checked out count: %w", err)
		}
		if err := tx.AppendEvent(ctx, rental.ID, 0, EventRentalOpened, RentalOpenedEvent{
			RentalID:   rental.ID,
			CustomerID: customerID,
			VideoID:    videoID,
			DueDate:    rental.DueDate,
		}); err != nil {
			return fmt.Errorf("journal check-out: %w", err)
		}

		receipt = &Receipt{
			Rental:                rental,
			VideosCheckedOutCount: customer.VideosCheckedOutCount,
			AvailableInventory:    video.AvailableInventory,
		}
		return nil
	})
	if err != nil {
		s.reject(ctx, span, "check_out", customerID, videoID, err)
		return nil, err
	}

	s.checkouts.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("rental.id", receipt.ID))
	s.log.Info("video checked out",
		zap.Int64("rental_id", receipt.ID),
		zap.Int64("customer_id", customerID),
		zap.Int64("video_id", videoID),
		zap.Int("available_inventory", receipt.AvailableInventory),
		zap.Time("due_date", receipt.DueDate),
	)
	return receipt, nil
}

// CheckIn closes the customer's open rental of a video and puts the copy
// back on the shelf.
func (s *service) CheckIn(ctx context.Context, customerID, videoID int64) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "rentals.check_in", trace.WithAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.Int64("video.id", videoID),
	))
	defer span.End()

	var summary *Summary
	var rentalID int64
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		customer, err := tx.LockCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		video, err := tx.LockVideo(ctx, videoID)
		if err != nil {
			return err
		}

		held, err := tx.RentalsOf(ctx, customerID)
		if err != nil {
			return fmt.Errorf("load rentals: %w", err)
		}
		rental := FindOpen(held, videoID)
		if rental == nil {
			return apperr.New(apperr.NoOpenRental, "Customer %d has no open rental of video %d", customerID, videoID)
		}

		if err := rental.Close(s.now()); err != nil {
			return err
		}
		if err := video.Release(); err != nil {
			return err
		}
		if err := customer.Return(); err != nil {
			return err
		}

		if err := tx.SaveRental(ctx, rental); err != nil {
			return fmt.Errorf("save rental: %w", err)
		}
		if err := tx.SaveInventory(ctx, video); err != nil {
			return fmt.Errorf("save inventory: %w", err)
		}
		if err := tx.SaveCheckedOutCount(ctx, customer); err != nil {
			return fmt.Errorf("save checked out count: %w", err)
		}
		if err := tx.AppendEvent(ctx, rental.ID, 1, EventRentalClosed, RentalClosedEvent{
			RentalID:   rental.ID,
			CustomerID: customerID,
			VideoID:    videoID,
			ReturnedAt: *rental.ReturnedAt,
		}); err != nil {
			return fmt.Errorf("journal check-in: %w", err)
		}

		rentalID = rental.ID
		summary = &Summary{
			CustomerID:            customerID,
			VideoID:               videoID,
			VideosCheckedOutCount: customer.VideosCheckedOutCount,
			AvailableInventory:    video.AvailableInventory,
		}
		return nil
	})
	if err != nil {
		s.reject(ctx, span, "check_in", customerID, videoID, err)
		return nil, err
	}

	s.checkins.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("rental.id", rentalID))
	s.log.Info("video checked in",
		zap.Int64("rental_id", rentalID),
		zap.Int64("customer_id", customerID),
		zap.Int64("video_id", videoID),
		zap.Int("available_inventory", summary.AvailableInventory),
	)
	return summary, nil
}

func (s *service) reject(ctx context.Context, span trace.Span, op string, customerID, videoID int64, err error) {
	kind := apperr.KindOf(err)
	reason := string(kind)
	if kind == "" {
		reason = "INTERNAL"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("rejection.reason", reason))
	s.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", reason),
	))
	s.log.Info("rental refused",
		zap.String("operation", op),
		zap.Int64("customer_id", customerID),
		zap.Int64("video_id", videoID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// CustomerRentals lists the videos a customer currently holds.
func (s *service) CustomerRentals(ctx context.Context, customerID int64) ([]CustomerRental, error) {
	return s.repo.CustomerRentals(ctx, customerID)
}

// VideoRenters lists the customers currently holding a video.
func (s *service) VideoRenters(ctx context.Context, videoID int64) ([]VideoRenter, error) {
	return s.repo.VideoRenters(ctx, videoID)
}

// RentalEvents returns the journal of one rental, oldest first.
func (s *service) RentalEvents(ctx context.Context, rentalID int64) ([]Event, error) {
	events, err := s.repo.Events(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, NotFound(rentalID)
	}
	return events, nil
}

func (s *service) Audit(ctx context.Context) (*Audit, error) {
	audit, err := s.repo.Audit(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if !audit.Consistent() {
		s.log.Error("inventory invariants violated",
			zap.Int("inventory_drift", audit.InventoryDrift),
			zap.Int("negative_inventory", audit.NegativeInventory),
			zap.Int("counter_drift", audit.CounterDrift),
		)
	}
	return audit, nil
}
