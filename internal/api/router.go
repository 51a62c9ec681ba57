// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/middleware"
)

// Router assembles the handler and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	authn         *auth.Middleware
	authz         *authz.Middleware
}

// NewRouter creates a router. authn may be nil, meaning no authentication;
// authz is only consulted when authn is enabled.
func NewRouter(handler *Handler, chiMw *ChiMiddleware, authn *auth.Middleware, authzMw *authz.Middleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		authn:         authn,
		authz:         authzMw,
	}
}

func (router *Router) authEnabled() bool {
	return router.authn != nil && router.authn.Enabled()
}

// protect applies authentication and route authorization when enabled.
func (router *Router) protect(r chi.Router) {
	if !router.authEnabled() {
		return
	}
	r.Use(router.authn.Authenticate)
	if router.authz != nil {
		r.Use(router.authz.Authorize)
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	// Health and metrics are public
	r.With(router.chiMiddleware.RateLimitCustom(RateLimitHealth), APISecurityHeaders()).Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	if router.authEnabled() {
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAuth))
			r.Use(APISecurityHeaders())
			r.Use(middleware.PrometheusMetrics)
			r.Post("/token", router.handler.IssueToken)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		router.protect(r)

		r.Post("/positions", router.handler.ReportPosition)
		r.Get("/positions/nearby", router.handler.NearbyVehicles)

		r.Get("/vehicles", router.handler.ListVehicles)
		r.Route("/vehicles/{id}", func(r chi.Router) {
			r.Get("/", router.handler.GetVehicle)
			r.Get("/position", router.handler.LatestPosition)
			r.Get("/positions", router.handler.PositionHistory)
			r.Post("/commands", router.handler.SendCommand)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket))
		router.protect(r)

		r.Get("/vehicle/{id}", router.handler.VehicleSocket)
		r.Get("/monitoring", router.handler.MonitoringSocket)
	})

	return r
}
