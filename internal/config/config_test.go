package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/folio/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Redis.KeyPrefix != "folio:" || cfg.Redis.OpTimeout != 250*time.Millisecond || cfg.Redis.MaxReconnects != 10 {
		t.Fatalf("redis defaults = %+v", cfg.Redis)
	}
	if cfg.Cache.SingleFlight {
		t.Fatal("single flight should be off by default")
	}
	if !cfg.Daemon.RequestLog {
		t.Fatal("request log should be on by default")
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	data := `
redis:
  addr: redis.internal:6380
  op_timeout: 100ms
cache:
  ttl:
    short: 1m
  classes:
    blog: long
  prefixes:
    hero: "h:"
  warm_schedule: "@every 30m"
  invalidation_patterns:
    blog: ["rss:blog*", "sitemap:*"]
daemon:
  http_addr: ":9000"
  request_log: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6380" || cfg.Redis.OpTimeout != 100*time.Millisecond {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.MaxReconnects != 10 {
		t.Fatal("unset fields should keep defaults")
	}
	if cfg.Cache.TTL.Short != time.Minute || cfg.Cache.WarmSchedule != "@every 30m" {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Daemon.HTTPAddr != ":9000" {
		t.Fatalf("http addr = %q", cfg.Daemon.HTTPAddr)
	}
	if cfg.Daemon.RequestLog {
		t.Fatal("request_log: false not applied")
	}
	if got := cfg.Cache.InvalidationPatterns["blog"]; len(got) != 2 || got[0] != "rss:blog*" || got[1] != "sitemap:*" {
		t.Fatalf("invalidation patterns = %v", cfg.Cache.InvalidationPatterns)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if p.ClassFor(domain.ContentBlog) != domain.TTLLong {
		t.Fatal("blog class override not applied")
	}
	if p.PrefixFor(domain.ContentHero) != "h:" {
		t.Fatalf("hero prefix = %q", p.PrefixFor(domain.ContentHero))
	}
	if p.TTLFor(domain.ContentSNS) != time.Minute {
		t.Fatalf("sns ttl = %v", p.TTLFor(domain.ContentSNS))
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.json")
	os.WriteFile(path, []byte(`{"redis":{"addr":"10.0.0.1:6379"},"postgres":{"dsn":"postgres://x"}}`), 0644)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Redis.Addr != "10.0.0.1:6379" || cfg.Postgres.DSN != "postgres://x" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{`), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FOLIO_REDIS_ADDR", "cache:6379")
	t.Setenv("FOLIO_REDIS_DB", "3")
	t.Setenv("FOLIO_REDIS_OP_TIMEOUT", "500ms")
	t.Setenv("FOLIO_REDIS_MAX_RECONNECTS", "not-a-number")
	t.Setenv("FOLIO_CACHE_TTL_WEEK", "48h")
	t.Setenv("FOLIO_CACHE_PREFIX_BLOG", "posts:")
	t.Setenv("FOLIO_CACHE_CLASS_SNS", "medium")
	t.Setenv("FOLIO_CACHE_SINGLE_FLIGHT", "true")
	t.Setenv("FOLIO_CACHE_WARM_SCHEDULE", "@hourly")
	t.Setenv("FOLIO_LOG_FORMAT", "json")
	t.Setenv("FOLIO_TRACING_ENABLED", "1")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 3 || cfg.Redis.OpTimeout != 500*time.Millisecond {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.MaxReconnects != 10 {
		t.Fatal("invalid values should be ignored")
	}
	if !cfg.Cache.SingleFlight || cfg.Cache.WarmSchedule != "@hourly" {
		t.Fatalf("cache = %+v", cfg.Cache)
	}
	if cfg.Daemon.LogFormat != "json" || !cfg.Observability.Tracing.Enabled {
		t.Fatalf("daemon = %+v tracing = %+v", cfg.Daemon, cfg.Observability.Tracing)
	}

	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if p.PrefixFor(domain.ContentBlog) != "posts:" {
		t.Fatalf("blog prefix = %q", p.PrefixFor(domain.ContentBlog))
	}
	if p.TTLFor(domain.ContentContact) != 48*time.Hour {
		t.Fatalf("contact ttl = %v", p.TTLFor(domain.ContentContact))
	}
	if p.ClassFor(domain.ContentSNS) != domain.TTLMedium {
		t.Fatal("sns class override not applied")
	}
}

func TestPolicy_UnknownClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Classes = map[string]string{"blog": "forever"}
	if _, err := cfg.Policy(); err == nil {
		t.Fatal("expected error for unknown class")
	}
}

func TestLoadFromEnv_AdminRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Daemon.AdminRateLimit.Enabled || cfg.Daemon.AdminRateLimit.BurstSize != 10 {
		t.Fatalf("default admin rate limit = %+v", cfg.Daemon.AdminRateLimit)
	}

	t.Setenv("FOLIO_ADMIN_RATE_LIMIT_ENABLED", "false")
	t.Setenv("FOLIO_ADMIN_RATE_LIMIT_RPS", "0.5")
	t.Setenv("FOLIO_ADMIN_RATE_LIMIT_BURST", "3")
	LoadFromEnv(cfg)

	rl := cfg.Daemon.AdminRateLimit
	if rl.Enabled || rl.RequestsPerSecond != 0.5 || rl.BurstSize != 3 {
		t.Fatalf("admin rate limit = %+v", rl)
	}
}
