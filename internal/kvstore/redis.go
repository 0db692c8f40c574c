package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces every physical key written by the store.
	DefaultKeyPrefix = "folio:"
	// DefaultOpTimeout bounds each backend call.
	DefaultOpTimeout = 250 * time.Millisecond

	scanBatch   = 200
	deleteBatch = 500
)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Addr          string        // Redis address (e.g. "localhost:6379")
	Password      string        // Redis password
	DB            int           // Redis database number
	KeyPrefix     string        // Key prefix for namespacing (default: "folio:")
	OpTimeout     time.Duration // Per-operation timeout (default: 250ms)
	MaxReconnects int           // Reconnect attempts before giving up (default: 10)
}

// RedisStore implements Store backed by Redis. It is shared by every process
// of a deployment; keys are namespaced by KeyPrefix.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
	health    *tracker
}

// NewRedisStore creates a Redis-backed store. No connection is attempted
// until Connect is called; until then the store is Connecting and behaves
// as a pass-through.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolTimeout:  opTimeout,
		MaxRetries:   -1,
	})
	return NewRedisStoreFromClient(client, cfg.KeyPrefix, opTimeout, cfg.MaxReconnects)
}

// NewRedisStoreFromClient creates a store using an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, opTimeout time.Duration, maxReconnects int) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	s := &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
	}
	s.health = newTracker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, maxReconnects, opTimeout)
	return s
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Client returns the underlying Redis client for direct access
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Connect(ctx context.Context) error {
	err := s.health.connect(ctx)
	if err != nil {
		logging.Op().Warn("redis connect failed, continuing without cache",
			"addr", s.client.Options().Addr, "error", err)
	}
	return err
}

func (s *RedisStore) Availability() Availability {
	return s.health.current()
}

// begin reports whether the backend may be used and returns a bounded context.
func (s *RedisStore) begin(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	if s.health.current() != Connected {
		return nil, nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	return cctx, cancel, true
}

// finish records the outcome of a backend call. redis.Nil is not a failure,
// and neither is a call aborted because the caller's context ended.
func (s *RedisStore) finish(ctx context.Context, op string, start time.Time, err error) bool {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, redis.Nil) {
		if ctx.Err() == nil {
			s.health.recordFailure()
		}
		logging.Op().Debug("redis operation failed", "op", op, "error", err)
		return false
	}
	s.health.recordSuccess()
	return true
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return nil, false
	}
	defer cancel()

	start := time.Now()
	val, err := s.client.Get(cctx, s.key(key)).Bytes()
	if !s.finish(ctx, "get", start, err) || err != nil {
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return false
	}
	defer cancel()

	start := time.Now()
	err := s.client.Set(cctx, s.key(key), value, ttl).Err()
	return s.finish(ctx, "set", start, err)
}

func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return false
	}
	defer cancel()

	start := time.Now()
	err := s.client.Del(cctx, s.key(key)).Err()
	return s.finish(ctx, "del", start, err)
}

// DeletePattern scans the namespace for matches and deletes them in batches.
// The scan is bounded by the operation timeout per page, not overall.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) bool {
	if s.health.current() != Connected {
		return false
	}

	keys, ok := s.scan(ctx, s.key(pattern))
	if !ok {
		return false
	}
	for i := 0; i < len(keys); i += deleteBatch {
		end := i + deleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		start := time.Now()
		err := s.client.Del(cctx, keys[i:end]...).Err()
		cancel()
		if !s.finish(ctx, "del_pattern", start, err) {
			return false
		}
	}
	return true
}

func (s *RedisStore) scan(ctx context.Context, match string) ([]string, bool) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		start := time.Now()
		page, next, err := s.client.Scan(cctx, cursor, match, scanBatch).Result()
		cancel()
		if !s.finish(ctx, "scan", start, err) {
			return nil, false
		}
		keys = append(keys, page...)
		cursor = next
		if cursor == 0 {
			return keys, true
		}
	}
}

func (s *RedisStore) Exists(ctx context.Context, key string) bool {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return false
	}
	defer cancel()

	start := time.Now()
	n, err := s.client.Exists(cctx, s.key(key)).Result()
	if !s.finish(ctx, "exists", start, err) {
		return false
	}
	return n > 0
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return false
	}
	defer cancel()

	start := time.Now()
	set, err := s.client.Expire(cctx, s.key(key), ttl).Result()
	if !s.finish(ctx, "expire", start, err) {
		return false
	}
	return set
}

func (s *RedisStore) Increment(ctx context.Context, key string) int64 {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return 0
	}
	defer cancel()

	start := time.Now()
	n, err := s.client.Incr(cctx, s.key(key)).Result()
	if !s.finish(ctx, "incr", start, err) {
		return 0
	}
	return n
}

// Flush deletes the store's namespace only, never the whole Redis database.
func (s *RedisStore) Flush(ctx context.Context) bool {
	ok := s.DeletePattern(ctx, "*")
	if ok {
		logging.Op().Warn("kv namespace flushed", "prefix", s.prefix)
	}
	return ok
}

// TTL returns the remaining time to live of key, or 0 when the key has no
// expiry, is missing or the backend is unavailable.
func (s *RedisStore) TTL(ctx context.Context, key string) time.Duration {
	cctx, cancel, ok := s.begin(ctx)
	if !ok {
		return 0
	}
	defer cancel()

	start := time.Now()
	d, err := s.client.TTL(cctx, s.key(key)).Result()
	if !s.finish(ctx, "ttl", start, err) || d < 0 {
		return 0
	}
	return d
}

func (s *RedisStore) Close() error {
	s.health.close()
	return s.client.Close()
}
