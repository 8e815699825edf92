package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/gable-pm/gable/pkg/api"
	"github.com/gable-pm/gable/pkg/audit"
	"github.com/gable-pm/gable/pkg/auth"
	"github.com/gable-pm/gable/pkg/config"
	"github.com/gable-pm/gable/pkg/observability"
	"github.com/gable-pm/gable/pkg/rbac"
	"github.com/gable-pm/gable/pkg/storage/postgres"
)

const (
	dbStatsInterval      = 15 * time.Second
	tokenCleanupInterval = time.Hour
)

func main() {
	createToken := flag.String("create-token", "", "Mint an admin token for the given username and exit")
	systemAdmin := flag.Bool("system-admin", false, "Grant system administrator capability to the minted token")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := rbac.RunMigrations(ctx, db, logger); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	tokenManager := auth.NewManager(db, cfg.Auth.CacheTTL)

	if *createToken != "" {
		record, token, err := tokenManager.CreateToken(ctx, *createToken, *systemAdmin, cfg.Auth.TokenTTL)
		if err != nil {
			logger.WithError(err).Error("failed to create admin token")
			os.Exit(1)
		}
		fmt.Printf("token: %s\nprefix: %s\nexpires: %s\n", token, record.TokenPrefix, record.ExpiresAt.Format(time.RFC3339))
		return
	}

	// Redis backs rate limiting and invite links. Its absence degrades the
	// service rather than preventing startup.
	redisClient, err := postgres.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, starting degraded")
		redisClient = nil
	}

	probe := rbac.NewProbe(db)
	store := rbac.NewStore(db, probe)
	auditStore := audit.NewStore(db)
	engine := rbac.NewEngine(db, store, auditStore, probe, logger)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	engine.SetMetrics(metrics)

	server := api.NewServer(cfg, logger, metrics, api.Dependencies{
		DB:         db,
		Redis:      redisClient,
		Engine:     engine,
		Store:      store,
		AuditStore: auditStore,
		Tokens:     tokenManager,
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	sweeper := audit.NewRetentionSweeper(auditStore, logger, cfg.Audit.RetentionDays, cfg.Audit.RetentionSchedule)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Error("failed to start retention sweeper")
		os.Exit(1)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go collectDBStats(bgCtx, metrics, db, logger)
	go cleanupExpiredTokens(bgCtx, tokenManager, logger)

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stopBackground()
		sweeper.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// collectDBStats periodically copies connection pool stats into gauges.
// A panic in one tick is logged and must not kill the loop.
func collectDBStats(ctx context.Context, metrics *observability.Metrics, db *sql.DB, logger *observability.Logger) {
	if metrics == nil {
		return
	}
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer observability.RecoverPanic(logger, "db stats collection")
				metrics.CollectDBStats(db)
			}()
		}
	}
}

// cleanupExpiredTokens removes expired admin tokens on a fixed interval.
func cleanupExpiredTokens(ctx context.Context, manager *auth.Manager, logger *observability.Logger) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer observability.RecoverPanic(logger, "token cleanup")
				removed, err := manager.CleanupExpiredTokens(ctx)
				if err != nil {
					logger.WithError(err).Warn("token cleanup failed")
					return
				}
				if removed > 0 {
					logger.WithField("removed", removed).Info("expired admin tokens removed")
				}
			}()
		}
	}
}
