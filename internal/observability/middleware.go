package observability

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Health and scrape endpoints are polled constantly and would drown real traffic.
var untraced = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// HTTPMiddleware starts a server span per request, continuing any trace
// context sent by the caller.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Enabled() || untraced[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := Tracer().Start(ctx, r.Method+" "+routeOf(r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()
		if ct := contentTypeSegment(r.URL.Path); ct != "" {
			span.SetAttributes(AttrContentType.String(ct))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		span.SetAttributes(
			attribute.Int("http.status_code", rw.statusCode),
			attribute.Int64("http.response_size", rw.bytesWritten),
		)
		// Client errors are the caller's problem, not a failed span
		if rw.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
		}
	})
}

// routeOf collapses document IDs so span names stay low-cardinality:
// /api/content/blog/abc123 becomes /api/content/blog/{id}.
func routeOf(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/content/")
	if !ok {
		return path
	}
	ct, id, found := strings.Cut(rest, "/")
	if !found || id == "" || ct == "publish" {
		return path
	}
	return "/api/content/" + ct + "/{id}"
}

func contentTypeSegment(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/content/")
	if !ok {
		return ""
	}
	ct, _, _ := strings.Cut(rest, "/")
	if ct == "publish" {
		return ""
	}
	return ct
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
