// Package main is the entry point for the ledgerspace server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/internal/config"
	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/observability"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "ledgerspace", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Membership store: postgres in production, memory for local runs.
	memberships, membershipsCloser, err := buildMembershipStore(ctx, cfg.Membership, logger)
	if err != nil {
		logger.Error("membership store initialization failed", zap.Error(err))
		return 1
	}

	// Claim cache: redis in production, memory for local runs.
	claimCache, cacheCloser, err := buildClaimCache(cfg.ClaimCache, logger)
	if err != nil {
		logger.Error("claim cache initialization failed", zap.Error(err))
		return 1
	}

	claims := tenancy.NewClaimsProvider(memberships, claimCache, cfg.ClaimCache.TTL, logger)
	claims.SetMetrics(metrics)

	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)
	gate := transport.NewGate(
		tenancy.NewRoleEvaluator(logger),
		tenancy.NewAnonymousEvaluator(logger),
		cfg.Identity.WorkspaceParam,
		metrics,
		logger,
	)

	store := ledger.NewMemoryStore()

	var feedSecret string
	if cfg.Feed.Enabled {
		feedSecret = os.Getenv(cfg.Feed.SecretEnv)
		if feedSecret == "" {
			logger.Warn("feed enabled but secret is not set, feed requests will be refused",
				zap.String("secret_env", cfg.Feed.SecretEnv))
		}
	}

	deps := transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Gate:         gate,
		Ledger:       store,
		Memberships:  memberships,
		Claims:       claims,
		FeedSecret:   feedSecret,
		HealthHandler: observability.HandleHealth(),
		ReadyHandler: observability.HandleReady(observability.ReadinessChecks{
			MembershipStore: memberships,
			ClaimCache:      claimCache,
		}),
	}
	if cfg.Observability.Tracing.Enabled {
		deps.Tracing = observability.TracingMiddleware
	}
	if cfg.Observability.Metrics.Enabled {
		deps.Metrics = metrics.MetricsMiddleware
		deps.MetricsHandler = observability.Handler()
	}

	router := transport.NewRouter(deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("membership_driver", cfg.Membership.Driver),
		zap.String("claim_cache_driver", cfg.ClaimCache.Driver),
		zap.Bool("feed_enabled", cfg.Feed.Enabled),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if membershipsCloser != nil {
		membershipsCloser()
	}
	if cacheCloser != nil {
		cacheCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildMembershipStore creates the role-assignment store based on config.
func buildMembershipStore(ctx context.Context, cfg config.MembershipConfig, logger *zap.Logger) (tenancy.MembershipStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory membership store")
		return tenancy.NewMemoryMembershipStore(), nil, nil
	case "postgres", "":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			if cfg.DSNEnv != "" {
				return nil, nil, fmt.Errorf("membership store: %s environment variable not set", cfg.DSNEnv)
			}
			logger.Warn("membership store DSN not configured, using in-memory store")
			return tenancy.NewMemoryMembershipStore(), nil, nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("membership store: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			poolCfg.MinConns = int32(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("membership store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("membership store: ping: %w", err)
		}

		return tenancy.NewPgMembershipStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported membership store driver: %q", cfg.Driver)
	}
}

// buildClaimCache creates the claim cache based on config.
func buildClaimCache(cfg config.ClaimCacheConfig, logger *zap.Logger) (tenancy.ClaimCache, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory claim cache")
		return tenancy.NewMemoryClaimCache(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			if cfg.AddrEnv != "" {
				return nil, nil, fmt.Errorf("claim cache: %s environment variable not set", cfg.AddrEnv)
			}
			logger.Warn("claim cache address not configured, using in-memory cache")
			return tenancy.NewMemoryClaimCache(), nil, nil
		}

		client := redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   cfg.DB,
		})
		return tenancy.NewRedisClaimCache(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported claim cache driver: %q", cfg.Driver)
	}
}
