// Package metrics регистрирует метрики Prometheus приложения.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estudar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OTPEvents счётчик событий одноразовых кодов: issued, verified, failed, locked, throttled, dispatch_failed.
	OTPEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_otp_events_total",
			Help: "One-time code lifecycle events",
		},
		[]string{"event"},
	)

	// GateDecisions решения контроля доступа: allow, redirect, error_allowed.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_gate_decisions_total",
			Help: "Access gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	// SearchRequests поисковые запросы по результату: hit, empty, cached, degraded.
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_search_requests_total",
			Help: "Search requests by outcome",
		},
		[]string{"outcome"},
	)

	// WebhookEvents уведомления Mercado Pago по результату обработки.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_webhook_events_total",
			Help: "Payment webhook notifications by result",
		},
		[]string{"result"},
	)

	// MessagesSent сообщения, отправленные воркером sender.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estudar_messages_sent_total",
			Help: "Outbound WhatsApp messages by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// Middleware записывает число и длительность HTTP-запросов по шаблону маршрута.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
