// Package cacheadmin exposes the operational cache endpoints. It holds no
// logic of its own beyond mapping cache results to HTTP status codes.
package cacheadmin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/logging"
)

// Handler serves /cache/*.
type Handler struct {
	Cache *contentcache.Cache
	// WarmTimeout bounds POST /cache/warm. Zero means 2 minutes.
	WarmTimeout time.Duration
}

// RegisterRoutes registers all cache admin routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /cache/stats", h.Stats)
	mux.HandleFunc("POST /cache/invalidate/{contentType}", h.Invalidate)
	mux.HandleFunc("POST /cache/invalidate-all", h.InvalidateAll)
	mux.HandleFunc("POST /cache/warm", h.Warm)
	mux.HandleFunc("POST /cache/reset-stats", h.ResetStats)
	mux.HandleFunc("POST /cache/flush", h.Flush)
	mux.HandleFunc("POST /cache/reconnect", h.Reconnect)
}

// Stats handles GET /cache/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// Invalidate handles POST /cache/invalidate/{contentType}
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("contentType")
	ct, err := h.Cache.Policy().Resolve(name)
	if err != nil {
		http.Error(w, "unknown content type: "+name, http.StatusBadRequest)
		return
	}

	effective := h.Cache.InvalidateType(r.Context(), ct)
	logging.Op().Info("cache invalidated via admin", "content_type", ct, "effective", effective)
	writeJSON(w, http.StatusOK, map[string]any{
		"contentType":         ct,
		"effective":           effective,
		"backendAvailability": h.Cache.Availability(),
	})
}

// InvalidateAll handles POST /cache/invalidate-all
func (h *Handler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	n := h.Cache.InvalidateAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"invalidatedTypes":    n,
		"backendAvailability": h.Cache.Availability(),
	})
}

// Warm handles POST /cache/warm
func (h *Handler) Warm(w http.ResponseWriter, r *http.Request) {
	timeout := h.WarmTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	// Partial failures are still a 200; only ErrNothingToWarm is an error.
	report, err := h.Cache.WarmCache(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"warmed":      report.Warmed,
		"failed":      report.Failed,
		"skipped":     report.Skipped,
		"duration_ms": report.Duration.Milliseconds(),
	})
}

// ResetStats handles POST /cache/reset-stats
func (h *Handler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.Cache.ResetStats()
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// Flush handles POST /cache/flush. It clears the whole key namespace.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	effective := h.Cache.Flush(r.Context())
	logging.Op().Warn("cache flushed via admin", "effective", effective)
	writeJSON(w, http.StatusOK, map[string]any{
		"effective":           effective,
		"backendAvailability": h.Cache.Availability(),
	})
}

// Reconnect handles POST /cache/reconnect
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.Cache.Reconnect(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error":               err.Error(),
			"backendAvailability": h.Cache.Availability(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backendAvailability": h.Cache.Availability(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
