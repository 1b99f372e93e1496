/*
Package metrics declares the Prometheus collectors exported by the chat server.

Collectors are registered on the default registry at package init and served
by promhttp on /metrics.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Chat metrics
	UsersJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_users_joined_total",
			Help: "Total users joined",
		},
	)

	UsersLeft = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_users_left_total",
			Help: "Total users left",
		},
		[]string{"reason"}, // "user_action" or "disconnected"
	)

	ActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_active_users",
			Help: "Users currently joined",
		},
	)

	ChatsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_chats_sent_total",
			Help: "Total chats sent",
		},
		[]string{"scope"}, // "global" or "direct"
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_events_published_total",
			Help: "Total events published to the broker",
		},
		[]string{"kind"},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_stream_subscribers",
			Help: "Open event stream connections",
		},
	)

	SubscribersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_stream_subscribers_dropped_total",
			Help: "Event stream subscribers dropped because their queue was full",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"limiter"},
	)
)

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
