package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/folio/internal/api/contentapi"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogMiddleware assigns a request ID and writes one RequestLog per
// request.
func requestLogMiddleware(l *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			observability.SpanFromContext(r.Context()).SetAttributes(observability.AttrRequestID.String(requestID))

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if l == nil {
				return
			}
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			l.Log(&logging.RequestLog{
				Timestamp:   start,
				RequestID:   requestID,
				TraceID:     observability.TraceID(r.Context()),
				Method:      r.Method,
				Path:        r.URL.Path,
				Status:      status,
				DurationMs:  time.Since(start).Milliseconds(),
				ContentType: contentTypeOf(r.URL.Path),
				FromCache:   w.Header().Get(contentapi.CacheHeader) == "HIT",
			})
		})
	}
}

// contentTypeOf extracts the content type segment of /api/content/... paths.
func contentTypeOf(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/content/")
	if !ok {
		return ""
	}
	ct, _, _ := strings.Cut(rest, "/")
	return ct
}
