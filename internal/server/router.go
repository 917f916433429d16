// internal/server/router.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"videostore/internal/customers"
	"videostore/internal/httpx"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

// Pinger reports whether the persistence store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	Customers customers.Service
	Videos    videos.Service
	Rentals   rentals.Service
	Store     Pinger
	Log       *zap.Logger

	RequestTimeout time.Duration
	WriteRateLimit float64
	WriteRateBurst int
}

// NewRouter wires every route of the API.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	customerHandler := customers.NewHandler(opts.Customers, validate, log)
	videoHandler := videos.NewHandler(opts.Videos, validate, log)
	rentalHandler := rentals.NewHandler(opts.Rentals, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if opts.Store != nil {
			if err := opts.Store.Ping(r.Context()); err != nil {
				log.Warn("store unreachable", zap.Error(err))
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/invariants", rentalHandler.HandleAudit)

	r.Group(func(r chi.Router) {
		r.Use(writeLimiter(newLimiter(opts.WriteRateLimit, opts.WriteRateBurst)))

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", customerHandler.HandleList)
			r.Post("/", customerHandler.HandleCreate)
			r.Get("/{id}", customerHandler.HandleGet)
			r.Put("/{id}", customerHandler.HandleUpdate)
			r.Delete("/{id}", customerHandler.HandleDelete)
			r.Get("/{id}/rentals", rentalHandler.HandleCustomerRentals)
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videoHandler.HandleList)
			r.Post("/", videoHandler.HandleCreate)
			r.Get("/{id}", videoHandler.HandleGet)
			r.Put("/{id}", videoHandler.HandleUpdate)
			r.Delete("/{id}", videoHandler.HandleDelete)
			r.Get("/{id}/rentals", rentalHandler.HandleVideoRenters)
		})

		r.Route("/rentals", func(r chi.Router) {
			r.Post("/check-out", rentalHandler.HandleCheckOut)
			r.Post("/check-in", rentalHandler.HandleCheckIn)
			r.Get("/{id}/events", rentalHandler.HandleEvents)
		})
	})

	return otelhttp.NewHandler(r, "videostore",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// New returns the HTTP server for handler.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
