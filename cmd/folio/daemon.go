package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/folio/internal/api"
	"github.com/oriys/folio/internal/config"
	"github.com/oriys/folio/internal/content"
	"github.com/oriys/folio/internal/contentcache"
	"github.com/oriys/folio/internal/domain"
	"github.com/oriys/folio/internal/invalidation"
	"github.com/oriys/folio/internal/kvstore"
	"github.com/oriys/folio/internal/logging"
	"github.com/oriys/folio/internal/metrics"
	"github.com/oriys/folio/internal/observability"
	"github.com/oriys/folio/internal/ratelimit"
	"github.com/oriys/folio/internal/scheduler"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		httpAddr string
		logLevel string
		pgDSN    string
		noRedis  bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run as daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if pgDSN != "" {
				cfg.Postgres.DSN = pgDSN
			}
			if noRedis {
				cfg.Redis.Enabled = false
			}

			if err := logging.InitStructured(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel); err != nil {
				return err
			}
			reqLog := logging.NewLogger(os.Stdout)
			reqLog.SetEnabled(cfg.Daemon.RequestLog)
			if cfg.Daemon.RequestLogFile != "" {
				if err := reqLog.SetOutput(cfg.Daemon.RequestLogFile); err != nil {
					return fmt.Errorf("open request log: %w", err)
				}
				defer reqLog.Close()
			}

			ctx := context.Background()

			tr := cfg.Observability.Tracing
			if err := observability.Init(ctx, observability.Config{
				Enabled:     tr.Enabled,
				Exporter:    tr.Exporter,
				Endpoint:    tr.Endpoint,
				ServiceName: tr.ServiceName,
				SampleRate:  tr.SampleRate,
			}); err != nil {
				logging.Op().Warn("tracing disabled", "error", err)
			}
			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.Buckets)
			}

			pol, err := cfg.Policy()
			if err != nil {
				return err
			}

			src, err := openContentStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			kv := openKVStore(ctx, cfg)
			defer kv.Close()

			var opts []contentcache.Option
			if cfg.Cache.SingleFlight {
				opts = append(opts, contentcache.WithSingleFlight())
			}
			cache := contentcache.New(kv, pol, opts...)
			content.RegisterLoaders(cache, src)

			inv := invalidation.New(cache, invalidationOptions(cfg)...)

			sched := scheduler.New(cache, cfg.Cache.WarmTimeout)
			if cfg.Cache.WarmSchedule != "" {
				if err := sched.AddWarm("warm", cfg.Cache.WarmSchedule); err != nil {
					return err
				}
			}
			sched.Start()
			if next, ok := sched.Next("warm"); ok {
				logging.Op().Info("scheduled cache warm", "spec", cfg.Cache.WarmSchedule, "next", next)
			}
			if cfg.Cache.WarmOnStart {
				go func() {
					if _, err := sched.WarmNow(ctx); err != nil {
						logging.Op().Warn("initial cache warm failed", "error", err)
					}
				}()
			}

			var httpServer *http.Server
			if cfg.Daemon.HTTPAddr != "" {
				httpServer = api.StartHTTPServer(cfg.Daemon.HTTPAddr, api.ServerConfig{
					Cache:        cache,
					Content:      src,
					Invalidation: inv,
					RequestLog:   reqLog,
					Metrics:      cfg.Observability.Metrics.Enabled,
					WarmTimeout:  cfg.Cache.WarmTimeout,
					AdminLimiter: adminLimiter(cfg, kv),
				})
				logging.Op().Info("folio daemon started", "http", cfg.Daemon.HTTPAddr, "cache", kv.Availability())
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			<-sigCh
			logging.Op().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if httpServer != nil {
				httpServer.Shutdown(shutdownCtx)
			}
			if err := inv.Wait(shutdownCtx); err != nil {
				logging.Op().Warn("pending cache invalidations abandoned", "error", err)
			}
			sched.Stop(shutdownCtx)
			observability.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", ":8080", "HTTP address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN (empty uses the in-memory content store)")
	cmd.Flags().BoolVar(&noRedis, "no-redis", false, "Use the in-process cache instead of Redis")

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// invalidationOptions configures the write-path eviction middleware: its
// timeout, the extra key globs evicted per content type, and a debug line per
// completed run.
func invalidationOptions(cfg *config.Config) []invalidation.Option {
	opts := []invalidation.Option{
		invalidation.WithTimeout(cfg.Cache.InvalidationTimeout),
		invalidation.WithObserver(func(r invalidation.Result) {
			logging.Op().Debug("cache invalidation finished",
				"types", r.Types, "patterns", r.Patterns, "effective", r.Effective)
		}),
	}
	for name, patterns := range cfg.Cache.InvalidationPatterns {
		if len(patterns) == 0 {
			continue
		}
		opts = append(opts, invalidation.WithPatterns(domain.ContentType(name), patterns...))
	}
	return opts
}

func openContentStore(ctx context.Context, cfg *config.Config) (content.Store, error) {
	if cfg.Postgres.DSN == "" {
		logging.Op().Warn("no postgres DSN configured, using in-memory content store")
		return content.NewMemoryStore(), nil
	}
	return content.NewPostgresStore(ctx, cfg.Postgres.DSN)
}

// openKVStore never fails: an unreachable Redis leaves the cache in
// pass-through mode while the store keeps reconnecting.
func openKVStore(ctx context.Context, cfg *config.Config) kvstore.Store {
	if !cfg.Redis.Enabled {
		logging.Op().Info("redis disabled, using in-process cache")
		return kvstore.NewMemoryStore()
	}
	s := kvstore.NewRedisStore(kvstore.RedisConfig{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		KeyPrefix:     cfg.Redis.KeyPrefix,
		OpTimeout:     cfg.Redis.OpTimeout,
		MaxReconnects: cfg.Redis.MaxReconnects,
	})
	s.Connect(ctx)
	return s
}

// adminLimiter shares buckets through Redis when the cache runs on it, with
// a local fallback while Redis is unreachable.
func adminLimiter(cfg *config.Config, kv kvstore.Store) *ratelimit.Limiter {
	rl := cfg.Daemon.AdminRateLimit
	if !rl.Enabled {
		return nil
	}
	var backend ratelimit.Backend = ratelimit.NewLocalTokenBucketBackend()
	if rs, ok := kv.(*kvstore.RedisStore); ok {
		prefix := cfg.Redis.KeyPrefix
		if prefix == "" {
			prefix = kvstore.DefaultKeyPrefix
		}
		backend = ratelimit.NewFallbackBackend(
			ratelimit.NewRedisBackend(rs.Client(), prefix),
			func() bool { return rs.Availability() == kvstore.Connected },
		)
	}
	return ratelimit.New(backend, ratelimit.Config{
		RequestsPerSecond: rl.RequestsPerSecond,
		BurstSize:         rl.BurstSize,
	})
}
