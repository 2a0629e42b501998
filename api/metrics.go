/*
metrics.go - Prometheus instrumentation for the HTTP surface

PURPOSE:
  Request counters and latency histograms for every API route, plus
  counters on the two domains' mutation outcomes. Exposed on GET /metrics
  via promhttp.

METRICS:
  ledger_http_requests_total{method,route,status}
  ledger_http_request_duration_seconds{method,route}
  ledger_payment_mutations_total{operation,outcome}
  ledger_coin_mutations_total{operation,outcome}
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_http_requests_total",
	Help: "HTTP requests by method, route pattern, and status code.",
}, []string{"method", "route", "status"})

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "ledger_http_request_duration_seconds",
	Help:    "HTTP request latency by method and route pattern.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// PaymentMutations counts payment engine operations by outcome
// (recorded from handlers via the status code mapping).
var PaymentMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_payment_mutations_total",
	Help: "Payment mutations by operation and outcome.",
}, []string{"operation", "outcome"})

// CoinMutations counts coin ledger operations by outcome.
var CoinMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_coin_mutations_total",
	Help: "Coin ledger mutations by operation and outcome.",
}, []string{"operation", "outcome"})

// recordOutcome tallies one mutation against its counter family.
func recordOutcome(vec *prometheus.CounterVec, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	vec.WithLabelValues(operation, outcome).Inc()
}

// Metrics is chi middleware that records request counts and latency
// against the matched route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
