package main

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basecamp/internal/platform/health"
	"basecamp/internal/screening/handler"
	"basecamp/pkg/platform/middleware/admin"
	"basecamp/pkg/platform/middleware/metadata"
	"basecamp/pkg/platform/middleware/request"
)

type routerDeps struct {
	screenings     *handler.Handler
	health         *health.Handler
	admin          admin.TokenValidator
	trustedProxies []netip.Prefix
	maxBodyBytes   int64
	httpMetrics    *request.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
}

// newRouter mounts probes and metrics without body handling, the public
// screening routes, and the admin routes behind the bearer token check.
func newRouter(d routerDeps) http.Handler {
	if d.metricsHandler == nil {
		d.metricsHandler = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Use(request.Recovery(d.logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime(nil))
	r.Use(metadata.NewMiddleware(d.trustedProxies).Handler)
	r.Use(request.Logger(d.logger))
	r.Use(request.Latency(d.httpMetrics))

	d.health.Register(r)
	r.Handle("/metrics", d.metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(d.maxBodyBytes))
		d.screenings.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(d.admin, d.logger))
			d.screenings.RegisterAdmin(r)
		})
	})
	return r
}
