package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/oriys/folio/internal/api/cacheadmin"
	"github.com/oriys/folio/internal/api/contentapi"
	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/invalidation"
	"github.com/oriys/folio/internal/kvstore"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/ratelimit"
)

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Cache        *contentcache.Cache
	Content      content.Store
	Invalidation *invalidation.Middleware
	RequestLog   *logging.Logger // Optional: nil disables request logging
	Metrics      bool            // Serve GET /metrics
	WarmTimeout  time.Duration
	AdminLimiter *ratelimit.Limiter // Optional: nil leaves /cache routes unthrottled
}

// NewHandler builds the full handler chain without starting a listener.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	adminHandler := &cacheadmin.Handler{
		Cache:       cfg.Cache,
		WarmTimeout: cfg.WarmTimeout,
	}
	adminMux := http.NewServeMux()
	adminHandler.RegisterRoutes(adminMux)
	mux.Handle("/cache/", ratelimit.Middleware(cfg.AdminLimiter)(adminMux))

	contentHandler := &contentapi.Handler{
		Store:        cfg.Content,
		Cache:        cfg.Cache,
		Invalidation: cfg.Invalidation,
	}
	contentHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /health", healthHandler(cfg))
	if cfg.Metrics {
		mux.Handle("GET /metrics", metrics.PrometheusHandler())
	}

	// Request logging sits inside tracing so log lines carry the trace ID
	var handler http.Handler = mux
	handler = requestLogMiddleware(cfg.RequestLog)(handler)
	handler = observability.HTTPMiddleware(handler)
	return handler
}

// StartHTTPServer creates and starts the HTTP server with cache admin and content handlers.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}

// healthHandler reports degraded, not failed, when the cache backend is down:
// content is still served.
func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		contentOK := cfg.Content.Ping(ctx) == nil
		availability := cfg.Cache.Availability()

		status := "ok"
		code := http.StatusOK
		switch {
		case !contentOK:
			status = "unavailable"
			code = http.StatusServiceUnavailable
		case availability != kvstore.Connected:
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"components": map[string]interface{}{
				"content": contentOK,
				"cache":   availability,
			},
		})
	}
}
