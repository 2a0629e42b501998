/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Prometheus request counters/histograms
  5. CORS:       Cross-origin requests for the admin console frontend

ROUTE GROUPS:
  /api/payables/*        Payable registration and lookup
  /api/payments/*        Payment record/edit/delete
  /api/counterparties/*  Counterparty registration and lookup
  /api/wallets/*         Coin wallet operations
  /api/admin/*           Reconciliation repairs
  /metrics               Prometheus scrape endpoint
  /healthz               Liveness probe

SECURITY NOTE:
  No authentication middleware. The admin console fronts this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Payable routes
		r.Route("/payables", func(r chi.Router) {
			r.Post("/", h.CreatePayable)
			r.Get("/{kind}/{id}", h.GetPayable)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Put("/{id}", h.EditPayment)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Counterparty routes
		r.Route("/counterparties", func(r chi.Router) {
			r.Post("/", h.CreateCounterparty)
			r.Get("/{id}", h.GetCounterparty)
		})

		// Wallet routes
		r.Route("/wallets", func(r chi.Router) {
			r.Get("/{userID}", h.GetWallet)
			r.Post("/{userID}/earn", h.Earn)
			r.Post("/{userID}/redeem", h.Redeem)
			r.Post("/{userID}/adjust", h.Adjust)
			r.Get("/{userID}/transactions", h.ListCoinTransactions)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile/payable", h.ReconcilePayable)
			r.Post("/reconcile/wallet", h.ReconcileWallet)
		})
	})

	// Observability
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
