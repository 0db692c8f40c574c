package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cache/stats":
			w.Write([]byte(`{"hits":3,"misses":1,"hitRate":0.75,"backendAvailability":"connected"}`))
		default:
			http.Error(w, "unknown content type: podcasts", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	prev := serverAddr
	serverAddr = srv.URL + "/"
	defer func() { serverAddr = prev }()

	var stats map[string]any
	if err := adminRequest(context.Background(), http.MethodGet, "/cache/stats", &stats); err != nil {
		t.Fatalf("adminRequest: %v", err)
	}
	if stats["hits"] != float64(3) {
		t.Fatalf("stats = %v", stats)
	}

	var out map[string]any
	err := adminRequest(context.Background(), http.MethodPost, "/cache/invalidate/podcasts", &out)
	if err == nil || !strings.Contains(err.Error(), "unknown content type") {
		t.Fatalf("expected server error to surface, got %v", err)
	}
}
