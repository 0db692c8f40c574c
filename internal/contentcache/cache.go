// Package contentcache is the read-through cache in front of the content
// sources. It follows the cache-aside pattern: reads populate the cache on a
// miss, writes go to the source of truth and then invalidate.
//
// # Failure model
//
// Cache failures never become content-serving failures. When the key-value
// backend is unavailable every lookup is a miss that calls the loader
// directly, and every write or invalidation is a no-op reported as
// ineffective. Loader errors are the only errors GetOrLoad returns, and they
// are returned unchanged.
//
// # Concurrency
//
// A Cache is safe for concurrent use. Concurrent misses for the same key may
// each call the loader (stampede) unless WithSingleFlight is set, in which
// case they share one load. A shared load is detached from the caller that
// started it, so one client disconnecting never fails the others; each
// caller still stops waiting when its own context ends. There is no ordering between a write to the
// source of truth and a concurrent reader: a reader may see the previous
// value until the invalidation lands or the entry's TTL elapses.
//
// # Statistics
//
// Hit and miss counters are per process and never persisted. With several
// processes sharing one backend each reports only its own traffic.
package contentcache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/kvstore"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/policy"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Loader reads one value from the source of truth. It must be safe to call
// repeatedly and must return an error on genuine failure rather than a
// sentinel value.
type Loader func(ctx context.Context) (any, error)

// Cache is the content cache. Construct one per process with New and pass it
// to the handlers that need it.
type Cache struct {
	store  kvstore.Store
	policy *policy.Policy
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	mu      sync.RWMutex
	loaders map[domain.ContentType]Loader

	flight        *singleflight.Group
	flightTimeout time.Duration
}

// DefaultFlightTimeout bounds a shared load once it no longer follows the
// context of the caller that started it.
const DefaultFlightTimeout = 30 * time.Second

// Option configures a Cache.
type Option func(*Cache)

// WithSingleFlight collapses concurrent misses for the same key into one
// loader call.
func WithSingleFlight() Option {
	return func(c *Cache) { c.flight = &singleflight.Group{} }
}

// WithFlightTimeout overrides DefaultFlightTimeout.
func WithFlightTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.flightTimeout = d
		}
	}
}

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over store. A nil policy means policy.Default().
func New(store kvstore.Store, p *policy.Policy, opts ...Option) *Cache {
	if store == nil {
		store = kvstore.NullStore{}
	}
	if p == nil {
		p = policy.Default()
	}
	c := &Cache{
		store:   store,
		policy:  p,
		now:     time.Now,
		loaders: make(map[domain.ContentType]Loader),

		flightTimeout: DefaultFlightTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the policy the cache was built with.
func (c *Cache) Policy() *policy.Policy {
	return c.policy
}

// Store returns the backing key-value store.
func (c *Cache) Store() kvstore.Store {
	return c.store
}

// Availability reports the backend state.
func (c *Cache) Availability() kvstore.Availability {
	return c.store.Availability()
}

// Reconnect asks the backend to connect again, e.g. after the store gave up
// its own reconnect attempts.
func (c *Cache) Reconnect(ctx context.Context) error {
	return c.store.Connect(ctx)
}

// RegisterLoader sets the whole-collection loader of a content type. It is
// used by WarmCache.
func (c *Cache) RegisterLoader(ct domain.ContentType, load Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if load == nil {
		delete(c.loaders, ct)
		return
	}
	c.loaders[ct] = load
}

// Loaders returns the content types with a registered loader, sorted.
func (c *Cache) Loaders() []domain.ContentType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ContentType, 0, len(c.loaders))
	for ct := range c.loaders {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Cache) loader(ct domain.ContentType) (Loader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.loaders[ct]
	return l, ok
}

// GetOrLoad returns the cached value of (ct, identifier) or loads, stores and
// returns it. An empty identifier addresses the whole collection.
//
// The value has the same shape on a hit and a miss: the loader's value as
// decoded from its JSON form (maps, slices, strings, float64, bool or nil).
// Callers that want a concrete Go type should use Fetch or Load, which are
// the primary API. A value that cannot be encoded is returned as the loader
// produced it and is not cached.
func (c *Cache) GetOrLoad(ctx context.Context, ct domain.ContentType, identifier string, load Loader) (any, error) {
	v, _, err := Fetch(ctx, c, ct, identifier, func(ctx context.Context) (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return decodedShape(value), nil
	})
	return v, err
}

// decodedShape returns value as a JSON round trip would produce it, which is
// what a hit decodes to. Values that cannot be encoded are returned as is.
func decodedShape(value any) any {
	raw, ok := value.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(value); err != nil {
			return value
		}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return value
	}
	return v
}

// Fetch is the typed read-through lookup. hit reports whether the value was
// served from the cache.
func Fetch[T any](ctx context.Context, c *Cache, ct domain.ContentType, identifier string, load func(ctx context.Context) (T, error)) (value T, hit bool, err error) {
	key := c.policy.KeyFor(ct, identifier)

	ctx, span := observability.StartSpan(ctx, "cache.get_or_load",
		observability.AttrContentType.String(string(ct)),
		observability.AttrCacheKey.String(key),
	)
	defer span.End()

	if v, ok := lookup[T](ctx, c, key); ok {
		c.hits.Add(1)
		metrics.RecordLookup(string(ct), true)
		span.SetAttributes(observability.AttrCacheHit.Bool(true))
		return v, true, nil
	}
	c.misses.Add(1)
	metrics.RecordLookup(string(ct), false)
	span.SetAttributes(observability.AttrCacheHit.Bool(false))

	fill := func(ctx context.Context) (T, error) {
		start := time.Now()
		v, err := load(ctx)
		metrics.RecordLoad(string(ct), float64(time.Since(start).Microseconds())/1000, err == nil)
		if err != nil {
			return v, err
		}
		c.put(ctx, ct, key, v)
		return v, nil
	}

	if c.flight == nil {
		value, err = fill(ctx)
	} else {
		ch := c.flight.DoChan(key, func() (any, error) {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
			defer cancel()
			return fill(fctx)
		})
		select {
		case res := <-ch:
			err = res.Err
			if res.Val != nil {
				value = res.Val.(T)
			}
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err != nil {
		observability.SetSpanError(span, err)
		var zero T
		return zero, false, err
	}
	return value, false, nil
}

// Load is Fetch without the hit flag.
func Load[T any](ctx context.Context, c *Cache, ct domain.ContentType, identifier string, load func(ctx context.Context) (T, error)) (T, error) {
	v, _, err := Fetch(ctx, c, ct, identifier, load)
	return v, err
}

// lookup reads and decodes an entry. Undecodable entries are deleted and
// reported as a miss.
func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	data, ok := c.store.Get(ctx, key)
	if !ok {
		return zero, false
	}
	entry, err := decodeEntry(data)
	if err == nil {
		var v T
		if err = json.Unmarshal(entry.Value, &v); err == nil {
			return v, true
		}
	}
	logging.OpContext(ctx).Warn("dropping undecodable cache entry", "key", key, "error", err)
	c.store.Delete(ctx, key)
	return zero, false
}

// put stores value under key with the TTL the policy assigns right now.
// Failure to store is not an error.
func (c *Cache) put(ctx context.Context, ct domain.ContentType, key string, value any) bool {
	ttl := c.policy.TTLFor(ct)
	data, err := encodeEntry(key, value, c.now(), ttl)
	if err != nil {
		logging.OpContext(ctx).Warn("cache value not serializable, serving uncached", "key", key, "error", err)
		return false
	}
	return c.store.Set(ctx, key, data, ttl)
}

// Set overwrites the entry of (ct, identifier) with value. It reports
// whether the value was stored.
func (c *Cache) Set(ctx context.Context, ct domain.ContentType, identifier string, value any) bool {
	return c.put(ctx, ct, c.policy.KeyFor(ct, identifier), value)
}

// Entry returns the raw stored entry of (ct, identifier), if any.
func (c *Cache) Entry(ctx context.Context, ct domain.ContentType, identifier string) (Entry, bool) {
	data, ok := c.store.Get(ctx, c.policy.KeyFor(ct, identifier))
	if !ok {
		return Entry{}, false
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Invalidate deletes the entry of (ct, identifier); an empty identifier
// deletes the whole-collection entry. The result reports whether the delete
// was effective; callers may ignore it.
func (c *Cache) Invalidate(ctx context.Context, ct domain.ContentType, identifier string) bool {
	key := c.policy.KeyFor(ct, identifier)
	ctx, span := observability.StartSpan(ctx, "cache.invalidate",
		observability.AttrContentType.String(string(ct)),
		observability.AttrCacheKey.String(key),
	)
	defer span.End()

	ok := c.store.Delete(ctx, key)
	c.reportInvalidation(span, "key", key, ok)
	return ok
}

// InvalidateType deletes every entry of ct: the collection entry and every
// item entry.
func (c *Cache) InvalidateType(ctx context.Context, ct domain.ContentType) bool {
	pattern := c.policy.PatternFor(ct)
	ctx, span := observability.StartSpan(ctx, "cache.invalidate_type",
		observability.AttrContentType.String(string(ct)),
		observability.AttrCachePattern.String(pattern),
	)
	defer span.End()

	ok := c.store.DeletePattern(ctx, pattern)
	c.reportInvalidation(span, "type", pattern, ok)
	return ok
}

// InvalidatePattern deletes every key matching a glob pattern. It is meant
// for content that is cached under several physical keys, e.g. route keys.
// The sweep is best effort and not atomic across keys.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) bool {
	ctx, span := observability.StartSpan(ctx, "cache.invalidate_pattern",
		observability.AttrCachePattern.String(pattern),
	)
	defer span.End()

	ok := c.store.DeletePattern(ctx, pattern)
	c.reportInvalidation(span, "pattern", pattern, ok)
	return ok
}

// InvalidateAll invalidates every known content type and every type with a
// registered loader. It returns the number of types effectively invalidated.
func (c *Cache) InvalidateAll(ctx context.Context) int {
	n := 0
	for _, ct := range c.allTypes() {
		if c.InvalidateType(ctx, ct) {
			n++
		}
	}
	logging.Op().Info("cache invalidated", "scope", "all", "effective_types", n)
	return n
}

// Flush clears the whole backend namespace, including keys written by
// anything other than this cache. Destructive.
func (c *Cache) Flush(ctx context.Context) bool {
	ok := c.store.Flush(ctx)
	metrics.RecordInvalidation("flush", ok)
	return ok
}

func (c *Cache) reportInvalidation(span trace.Span, scope, target string, ok bool) {
	span.SetAttributes(observability.AttrEffective.Bool(ok))
	metrics.RecordInvalidation(scope, ok)
	if ok {
		logging.Op().Debug("cache invalidated", "scope", scope, "target", target)
		return
	}
	// Outages are logged by the store on state transitions.
	if c.store.Availability() == kvstore.Connected {
		logging.Op().Warn("cache invalidation failed", "scope", scope, "target", target)
	}
}

// allTypes returns the built-in content types followed by any other type
// with a registered loader.
func (c *Cache) allTypes() []domain.ContentType {
	types := c.policy.ContentTypes()
	for _, ct := range c.Loaders() {
		if !ct.IsKnown() {
			types = append(types, ct)
		}
	}
	return types
}

// ErrNothingToWarm is returned by WarmCache when the backend is unreachable
// and no loader is registered, so warming cannot do anything at all.
var ErrNothingToWarm = errors.New("cache warm: backend unavailable and no loaders registered")
