package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/show-reservations/internal/domain"
	"github.com/robertarktes/show-reservations/internal/observability"
)

// RouterOptions configures the authenticated routes. A nil Limiter or
// Idempotency disables that middleware.
type RouterOptions struct {
	JWTSecret   []byte
	Limiter     Limiter
	UserRate    int
	IPRate      int
	Idempotency IdempotencyStore
}

func SetupRouter(h *Handlers, logger observability.Logger, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(opts.JWTSecret))
		if opts.Limiter != nil {
			r.Use(RateLimitMiddleware(opts.Limiter, opts.UserRate, opts.IPRate))
		}

		r.Post("/posts", h.CreatePost)
		r.Get("/posts/overview", h.PostOverview)
		r.Get("/posts/{postID}", h.GetPost)
		r.Put("/posts/{postID}", h.UpdatePost)
		r.Delete("/posts/{postID}", h.DeletePost)
		r.Get("/posts/{postID}/schedules", h.ListSchedules)
		r.Get("/posts/{postID}/ticket-options", h.ListTicketOptions)
		r.Get("/posts/{postID}/availability", h.CheckAvailability)
		r.Get("/schedules/{scheduleID}/seats", h.ListSeats)

		r.Route("/reservations", func(r chi.Router) {
			if opts.Idempotency != nil {
				r.With(IdempotencyMiddleware(opts.Idempotency)).Post("/", h.CreateReservation)
			} else {
				r.Post("/", h.CreateReservation)
			}
			r.Get("/mine", h.ListMyReservations)
			r.Get("/mine/overview", h.MyReservationsOverview)
			r.Get("/{id}", h.GetMyReservation)
			r.Delete("/{id}", h.CancelReservation)
			r.Post("/{id}/refund", h.RequestRefund)
			if h.svc.Activity != nil {
				r.Get("/mine/activity", h.MyActivity)
			}
		})

		r.Route("/manage", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Get("/reservations", h.ListForMyPerformances)
			r.Get("/posts/{postID}/reservations", h.ListForPerformance)
			r.Get("/reservations/{id}", h.GetReservationAdmin)
			r.Patch("/reservations/{id}/status", h.DecideReservation)
			r.Patch("/reservations/{id}/refund", h.DecideRefund)
			r.Get("/refunds", h.ListRefundRequests)
			if h.svc.Activity != nil {
				r.Get("/reservations/{id}/history", h.ReservationHistory)
			}
		})
	})

	return r
}
