/*
Package handler provides the HTTP handlers and routing setup for the chatroom server.

This file defines the main Router, applying middleware for logging, CORS, metrics and
rate limiting before delegating requests to the API and event stream handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatroom/internal/app/api"
	"chatroom/internal/pkg/auth/jwt"
	"chatroom/internal/pkg/limiter"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/metrics"
	"chatroom/internal/pkg/resp"
)

const (
	JoinRate     = 0.2
	JoinBurst    = 5
	SendRate     = 2
	SendBurst    = 10
	StreamRate   = 0.5
	StreamBurst  = 5
	wsBufferSize = 4096
)

// Router sets up the main HTTP routing table for the application.
// The rate limiters sweep idle entries until ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	joinLimiter := limiter.New(ctx, "join", rate.Limit(JoinRate), JoinBurst)
	sendLimiter := limiter.New(ctx, "send", rate.Limit(SendRate), SendBurst)
	streamLimiter := limiter.New(ctx, "stream", rate.Limit(StreamRate), StreamBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  wsBufferSize,
		WriteBufferSize: wsBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Terminal clients and bots send no Origin.
			if origin == "" || deps.Config.IsDevelopment() {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("Event stream rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":      "ok",
			"service":     "chatroom",
			"subscribers": deps.Manager.Subscribers(),
		}
		resp.RespondSuccess(w, r, data)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(joinLimiter.Middleware(limiter.ClientIP)).Post(api.PathJoin, HandleJoin(deps))

	r.Group(func(authed chi.Router) {
		authed.Use(jwt.RequireIdentity(deps.Config.JWTSecret))

		authed.Post(api.PathLeave, HandleLeave(deps))
		authed.Post(api.PathRenew, HandleRenew(deps))

		authed.Get(api.PathActiveUsers, HandleActiveUsers(deps))
		authed.Post(api.PathUpdateStatus, HandleUpdateStatus(deps))
		authed.Post(api.PathUpdateDetails, HandleUpdateDetails(deps))

		authed.With(sendLimiter.Middleware(userKey)).Post(api.PathSendChat, HandleSendChat(deps))
		authed.Post(api.PathIndicateTyping, HandleIndicateTyping(deps))

		authed.Get(api.PathPreviousEvents, HandlePreviousEvents(deps))
	})

	r.With(
		streamLimiter.Middleware(limiter.ClientIP),
		jwt.RequireIdentity(deps.Config.JWTSecret),
	).Get(api.PathEventStream, HandleEventStream(deps, wsUpgrader))

	return r
}
