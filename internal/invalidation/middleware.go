// Package invalidation evicts cached content after a successful mutation.
//
// The middleware wraps a write handler. It observes the status and body the
// handler sends and, once the handler has returned, evicts the configured
// content types in the background when the response was a success: a 2xx
// status and no "ok": false flag in a JSON body. The response is never held
// back by the eviction, and eviction failures are only logged.
//
// Evictions run detached from the request: a client that disconnects after
// the mutation does not cancel them. Call Wait during shutdown so in-flight
// evictions are not lost.
package invalidation

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/observability"
)

// DefaultTimeout bounds one detached eviction run.
const DefaultTimeout = 5 * time.Second

// Invalidator is the part of the content cache the middleware needs.
type Invalidator interface {
	InvalidateType(ctx context.Context, ct domain.ContentType) bool
	InvalidatePattern(ctx context.Context, pattern string) bool
}

// Result describes one completed eviction run.
type Result struct {
	Types     []domain.ContentType
	Patterns  []string
	Effective bool
}

// Middleware produces invalidating handler decorators. One Middleware is
// shared by every route of a server.
type Middleware struct {
	cache    Invalidator
	timeout  time.Duration
	patterns map[domain.ContentType][]string
	observer func(Result)

	wg sync.WaitGroup
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithTimeout bounds each eviction run.
func WithTimeout(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithPatterns adds physical key patterns to evict whenever ct is evicted,
// for content that is cached under more than its type prefix.
func WithPatterns(ct domain.ContentType, patterns ...string) Option {
	return func(m *Middleware) {
		m.patterns[ct] = append(m.patterns[ct], patterns...)
	}
}

// WithObserver is called after every eviction run.
func WithObserver(fn func(Result)) Option {
	return func(m *Middleware) { m.observer = fn }
}

// New creates a middleware evicting through cache.
func New(cache Invalidator, opts ...Option) *Middleware {
	m := &Middleware{
		cache:    cache,
		timeout:  DefaultTimeout,
		patterns: make(map[domain.ContentType][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// For returns a decorator evicting ct after a successful response.
func (m *Middleware) For(ct domain.ContentType) func(http.Handler) http.Handler {
	return m.ForTypes(ct)
}

// ForTypes returns a decorator evicting every listed type after a successful
// response, e.g. a publish action touching blog, sns and hero together.
func (m *Middleware) ForTypes(types ...domain.ContentType) func(http.Handler) http.Handler {
	types = append([]domain.ContentType(nil), types...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := newCaptureWriter(w)
			next.ServeHTTP(cw, r)

			if !cw.succeeded() {
				logging.Op().Debug("cache invalidation skipped",
					"path", r.URL.Path, "status", cw.status(), "types", types)
				return
			}
			m.dispatch(r.Context(), types)
		})
	}
}

// Wrap is ForTypes for a single handler function.
func (m *Middleware) Wrap(h http.HandlerFunc, types ...domain.ContentType) http.Handler {
	return m.ForTypes(types...)(h)
}

// dispatch starts the detached eviction of types.
func (m *Middleware) dispatch(parent context.Context, types []domain.ContentType) {
	if len(types) == 0 {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.timeout)
		defer cancel()
		m.run(ctx, types)
	}()
}

// Run evicts types synchronously, outside of any HTTP request.
func (m *Middleware) Run(ctx context.Context, types ...domain.ContentType) Result {
	return m.run(ctx, types)
}

func (m *Middleware) run(ctx context.Context, types []domain.ContentType) Result {
	ctx, span := observability.StartSpan(ctx, "cache.invalidation")
	defer span.End()

	res := Result{Types: types, Effective: true}
	for _, ct := range types {
		if !m.cache.InvalidateType(ctx, ct) {
			res.Effective = false
			logging.OpContext(ctx).Warn("cache invalidation not effective", "content_type", ct)
		}
		for _, pattern := range m.patterns[ct] {
			res.Patterns = append(res.Patterns, pattern)
			if !m.cache.InvalidatePattern(ctx, pattern) {
				res.Effective = false
				logging.OpContext(ctx).Warn("cache invalidation not effective", "content_type", ct, "pattern", pattern)
			}
		}
	}
	span.SetAttributes(observability.AttrEffective.Bool(res.Effective))
	if m.observer != nil {
		m.observer(res)
	}
	return res
}

// Wait blocks until every dispatched eviction has finished or ctx ends.
func (m *Middleware) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
