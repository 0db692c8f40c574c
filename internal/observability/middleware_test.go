package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware_Disabled(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Enabled() {
		t.Fatal("tracing should be disabled")
	}

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceID(r.Context()) != "" {
			t.Error("no trace ID expected when tracing is disabled")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}

func TestHTTPMiddleware_Enabled(t *testing.T) {
	if err := Init(context.Background(), Config{
		Enabled:     true,
		Exporter:    "discard",
		ServiceName: "folio-test",
		SampleRate:  1,
	}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		Shutdown(context.Background())
		Init(context.Background(), Config{Enabled: false})
	}()

	var traceID string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceID(r.Context())
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/content/blog", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
	if traceID == "" {
		t.Fatal("expected a trace ID inside the handler")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon", ServiceName: "x"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	Init(context.Background(), Config{Enabled: false})
}

func TestHTTPMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: true, Exporter: "discard", SampleRate: 1}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		Shutdown(context.Background())
		Init(context.Background(), Config{Enabled: false})
	}()

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TraceID(r.Context()) != "" {
			t.Errorf("%s should not be traced", r.URL.Path)
		}
	}))
	for _, path := range []string{"/health", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
}

func TestInit_OTLPNeedsEndpoint(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "otlp-http"})
	if err == nil {
		t.Fatal("expected error without an endpoint")
	}
	if Enabled() {
		t.Fatal("failed Init must not enable tracing")
	}
}

func TestRouteOf(t *testing.T) {
	tests := map[string]string{
		"/api/content/blog":         "/api/content/blog",
		"/api/content/blog/abc-123": "/api/content/blog/{id}",
		"/api/content/blog/":        "/api/content/blog/",
		"/api/content/publish":      "/api/content/publish",
		"/cache/invalidate/blog":    "/cache/invalidate/blog",
	}
	for in, want := range tests {
		if got := routeOf(in); got != want {
			t.Errorf("routeOf(%q) = %q, want %q", in, got, want)
		}
	}
	if ct := contentTypeSegment("/api/content/sns/1"); ct != "sns" {
		t.Errorf("contentTypeSegment = %q", ct)
	}
	if ct := contentTypeSegment("/api/content/publish"); ct != "" {
		t.Errorf("publish is not a content type, got %q", ct)
	}
}
