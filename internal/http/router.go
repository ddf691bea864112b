package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tablewise/seatcore/internal/observability"
	"github.com/tablewise/seatcore/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireIdempotencyKey)
			r.Post("/holds", h.CreateHold)
			r.Post("/holds/{holdID}/commit", h.CommitHold)
		})
		r.Post("/holds/{holdID}/extend", h.ExtendHold)
		r.Get("/holds/{holdID}", h.GetHold)
		r.Delete("/holds/{holdID}", h.ReleaseHold)

		r.Get("/bookings/{bookingID}", h.GetBooking)

		r.Get("/tables/{tableID}/seats", h.TableSeats)
		r.Get("/tables/{tableID}/floorplan", h.FloorPlan)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/tables", h.CreateTable)
			r.Get("/seats/{seatID}/conflict", h.SeatConflict)
			r.Post("/seats/{seatID}/override", h.OverrideSeat)
			r.Post("/bookings/{bookingID}/cancel", h.CancelBooking)
		})

		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
