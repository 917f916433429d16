// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"videostore/internal/config"
	"videostore/internal/customers"
	"videostore/internal/rentals"
	"videostore/internal/server"
	"videostore/internal/store"
	"videostore/internal/telemetry"
	"videostore/internal/videos"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := newLogger(cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	backend, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	handler := server.NewRouter(server.Options{
		Customers:      customers.NewService(backend.Customers(), log),
		Videos:         videos.NewService(backend.Videos(), log),
		Rentals:        rentals.NewService(backend.Rentals(), log, cfg.RentalPeriod),
		Store:          backend,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		WriteRateLimit: cfg.WriteRateLimit,
		WriteRateBurst: cfg.WriteRateBurst,
	})
	srv := server.New(":"+cfg.Port, handler, cfg.RequestTimeout)

	errc := make(chan error, 1)
	go func() {
		log.Info("starting videostore",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.Store),
			zap.Duration("rental_period", cfg.RentalPeriod),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Backend, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pg := store.NewPostgres(db, log)
	if err := pg.Migrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}
