package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/policy"
	"gopkg.in/yaml.v3"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Addr          string        `json:"addr" yaml:"addr"`
	Password      string        `json:"password" yaml:"password"`
	DB            int           `json:"db" yaml:"db"`
	KeyPrefix     string        `json:"key_prefix" yaml:"key_prefix"`
	OpTimeout     time.Duration `json:"op_timeout" yaml:"op_timeout"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
}

// TTLConfig overrides the duration of each TTL class. Zero keeps the default.
type TTLConfig struct {
	Short  time.Duration `json:"short" yaml:"short"`
	Medium time.Duration `json:"medium" yaml:"medium"`
	Long   time.Duration `json:"long" yaml:"long"`
	Week   time.Duration `json:"week" yaml:"week"`
}

// CacheConfig holds content cache settings
type CacheConfig struct {
	TTL                 TTLConfig         `json:"ttl" yaml:"ttl"`
	Classes             map[string]string `json:"classes" yaml:"classes"`   // content type -> short|medium|long|week
	Prefixes            map[string]string `json:"prefixes" yaml:"prefixes"` // content type -> key prefix
	SingleFlight        bool              `json:"single_flight" yaml:"single_flight"`
	WarmOnStart         bool              `json:"warm_on_start" yaml:"warm_on_start"`
	WarmSchedule        string            `json:"warm_schedule" yaml:"warm_schedule"` // cron spec, empty disables
	WarmTimeout         time.Duration     `json:"warm_timeout" yaml:"warm_timeout"`
	InvalidationTimeout time.Duration     `json:"invalidation_timeout" yaml:"invalidation_timeout"`

	// InvalidationPatterns lists extra key globs evicted with a content type,
	// for content cached under more than its type prefix (feeds, sitemaps).
	InvalidationPatterns map[string][]string `json:"invalidation_patterns" yaml:"invalidation_patterns"`
}

// PostgresConfig holds content store settings. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// AdminRateLimitConfig throttles the /cache admin routes per client IP.
type AdminRateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size" yaml:"burst_size"`
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	HTTPAddr       string `json:"http_addr" yaml:"http_addr"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	LogFormat      string `json:"log_format" yaml:"log_format"` // text, json
	RequestLog     bool   `json:"request_log" yaml:"request_log"`
	RequestLogFile string `json:"request_log_file" yaml:"request_log_file"`

	AdminRateLimit AdminRateLimitConfig `json:"admin_rate_limit" yaml:"admin_rate_limit"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool      `json:"enabled" yaml:"enabled"`
	Namespace string    `json:"namespace" yaml:"namespace"`
	Buckets   []float64 `json:"buckets" yaml:"buckets"`
}

// ObservabilityConfig groups tracing and metrics
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Redis         RedisConfig         `json:"redis" yaml:"redis"`
	Cache         CacheConfig         `json:"cache" yaml:"cache"`
	Postgres      PostgresConfig      `json:"postgres" yaml:"postgres"`
	Daemon        DaemonConfig        `json:"daemon" yaml:"daemon"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Enabled:       true,
			Addr:          "localhost:6379",
			Password:      "",
			DB:            0,
			KeyPrefix:     "folio:",
			OpTimeout:     250 * time.Millisecond,
			MaxReconnects: 10,
		},
		Cache: CacheConfig{
			WarmOnStart:         true,
			WarmTimeout:         2 * time.Minute,
			InvalidationTimeout: 5 * time.Second,
		},
		Daemon: DaemonConfig{
			HTTPAddr:   ":8080",
			LogLevel:   "info",
			LogFormat:  "text",
			RequestLog: true,
			AdminRateLimit: AdminRateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 1,
				BurstSize:         10,
			},
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "folio",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "folio",
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON file, or YAML when the
// extension is .yaml or .yml.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FOLIO_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FOLIO_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	setInt(&cfg.Redis.DB, "FOLIO_REDIS_DB")
	setBool(&cfg.Redis.Enabled, "FOLIO_REDIS_ENABLED")
	if v := os.Getenv("FOLIO_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	setDuration(&cfg.Redis.OpTimeout, "FOLIO_REDIS_OP_TIMEOUT")
	setInt(&cfg.Redis.MaxReconnects, "FOLIO_REDIS_MAX_RECONNECTS")

	setDuration(&cfg.Cache.TTL.Short, "FOLIO_CACHE_TTL_SHORT")
	setDuration(&cfg.Cache.TTL.Medium, "FOLIO_CACHE_TTL_MEDIUM")
	setDuration(&cfg.Cache.TTL.Long, "FOLIO_CACHE_TTL_LONG")
	setDuration(&cfg.Cache.TTL.Week, "FOLIO_CACHE_TTL_WEEK")
	for _, ct := range domain.ContentTypes() {
		name := strings.ToUpper(string(ct))
		if v := os.Getenv("FOLIO_CACHE_PREFIX_" + name); v != "" {
			if cfg.Cache.Prefixes == nil {
				cfg.Cache.Prefixes = make(map[string]string)
			}
			cfg.Cache.Prefixes[string(ct)] = v
		}
		if v := os.Getenv("FOLIO_CACHE_CLASS_" + name); v != "" {
			if cfg.Cache.Classes == nil {
				cfg.Cache.Classes = make(map[string]string)
			}
			cfg.Cache.Classes[string(ct)] = v
		}
	}
	setBool(&cfg.Cache.SingleFlight, "FOLIO_CACHE_SINGLE_FLIGHT")
	setBool(&cfg.Cache.WarmOnStart, "FOLIO_CACHE_WARM_ON_START")
	if v, ok := os.LookupEnv("FOLIO_CACHE_WARM_SCHEDULE"); ok {
		cfg.Cache.WarmSchedule = v
	}

	if v := os.Getenv("FOLIO_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("FOLIO_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("FOLIO_LOG_FORMAT"); v != "" {
		cfg.Daemon.LogFormat = v
	}
	setBool(&cfg.Daemon.RequestLog, "FOLIO_REQUEST_LOG")
	setBool(&cfg.Daemon.AdminRateLimit.Enabled, "FOLIO_ADMIN_RATE_LIMIT_ENABLED")
	setInt(&cfg.Daemon.AdminRateLimit.BurstSize, "FOLIO_ADMIN_RATE_LIMIT_BURST")
	if v := os.Getenv("FOLIO_ADMIN_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Daemon.AdminRateLimit.RequestsPerSecond = f
		}
	}
	setBool(&cfg.Observability.Tracing.Enabled, "FOLIO_TRACING_ENABLED")
	if v := os.Getenv("FOLIO_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	setBool(&cfg.Observability.Metrics.Enabled, "FOLIO_METRICS_ENABLED")
}

// Policy builds the cache policy described by the config. Unknown class
// names are an error; unknown content types are accepted and get their own
// rule.
func (c *Config) Policy() (*policy.Policy, error) {
	o := policy.Overrides{
		ClassDurations: map[domain.TTLClass]time.Duration{
			domain.TTLShort:  c.Cache.TTL.Short,
			domain.TTLMedium: c.Cache.TTL.Medium,
			domain.TTLLong:   c.Cache.TTL.Long,
			domain.TTLWeek:   c.Cache.TTL.Week,
		},
		Classes:  make(map[domain.ContentType]domain.TTLClass, len(c.Cache.Classes)),
		Prefixes: make(map[domain.ContentType]string, len(c.Cache.Prefixes)),
	}
	for name, className := range c.Cache.Classes {
		class, err := domain.ParseTTLClass(className)
		if err != nil {
			return nil, fmt.Errorf("cache class of %s: %w", name, err)
		}
		o.Classes[domain.ContentType(name)] = class
	}
	for name, prefix := range c.Cache.Prefixes {
		o.Prefixes[domain.ContentType(name)] = prefix
	}
	return policy.New(o), nil
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
