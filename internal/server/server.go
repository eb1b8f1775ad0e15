// Package server implements the HTTP transport layer for the ryuka gateway.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/app"
	"github.com/ryuka-api/ryuka/internal/cache"
	"github.com/ryuka-api/ryuka/internal/storage"
	"github.com/ryuka-api/ryuka/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Resolver       *app.ResolveService
	Cache          cache.Cache           // the same instance the resolver uses
	FetchLog       storage.FetchLogStore // nil = fetch log endpoints answer 404
	Metrics        *telemetry.Metrics    // nil = no request metrics
	MetricsHandler http.Handler          // nil = no /metrics endpoint
	ReadyCheck     ReadyChecker          // nil = always ready (for tests)
	StartedAt      time.Time             // zero = time of New
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// System endpoints
	r.Get("/", s.handleBanner)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Cache-aside resolution, one route per content kind.
		r.Get("/yt", s.handleResolve(gateway.KindYouTube))
		r.Get("/youtube", s.handleResolve(gateway.KindYouTube))
		r.Get("/tiktok", s.handleResolve(gateway.KindTikTok))
		r.Get("/instagram", s.handleResolve(gateway.KindInstagram))
		r.Get("/facebook", s.handleResolve(gateway.KindFacebook))

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)

		r.Get("/fetches", s.handleListFetches)
		r.Get("/fetches/summary", s.handleFetchSummary)

		r.Post("/ai-chat", promptHandler(chatResult))
		r.Post("/ai-image", promptHandler(imageResult))
		r.Post("/ai-video", promptHandler(videoResult))
	})

	return r
}

type server struct {
	deps Deps
}
