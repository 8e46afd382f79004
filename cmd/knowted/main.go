package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/knowted/knowted/pkg/api"
	"github.com/knowted/knowted/pkg/audit"
	"github.com/knowted/knowted/pkg/auth"
	"github.com/knowted/knowted/pkg/billing"
	"github.com/knowted/knowted/pkg/config"
	"github.com/knowted/knowted/pkg/middleware"
	"github.com/knowted/knowted/pkg/observability"
	"github.com/knowted/knowted/pkg/orgs"
	"github.com/knowted/knowted/pkg/permissions"
	"github.com/knowted/knowted/pkg/storage"
	"github.com/knowted/knowted/pkg/usage"
)

// inviteCleanupSchedule purges expired unaccepted invites so they stop
// counting against seat limits.
const inviteCleanupSchedule = "@hourly"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	db, err := storage.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	redisClient, err := storage.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(verifier, auth.NewPostgresUserStore(db))
	if !cfg.Auth.APIKeysEnabled {
		resolver.DisableAPIKeys()
	}

	recorder, err := audit.NewDBRecorder(db)
	if err != nil {
		return err
	}

	orgService := orgs.NewPostgresService(db)
	permStore := permissions.NewPostgresStore(db)
	permChecker := permissions.NewChecker(permStore, permissions.DefaultCacheSize, permissions.DefaultCacheTTL)
	billingService := billing.NewPostgresService(db, cfg.Billing.StripeWebhookSecret)
	usageService := usage.NewPostgresService(db, billingService)

	chain := &middleware.Chain{
		Auth:           middleware.NewAuthMiddleware(resolver, logger, metrics, recorder),
		Membership:     middleware.NewMembershipGuard(orgService, logger, metrics, recorder),
		Permission:     middleware.NewPermissionGuard(permChecker, logger, metrics, recorder),
		SeatLimit:      middleware.NewSeatLimitGuard(orgService, logger, metrics, recorder),
		Feature:        middleware.NewFeatureGuard("", metrics),
		Quota:          middleware.NewQuotaGuard("", metrics),
		MonthlyMinutes: middleware.NewMonthlyMinutesGuard(metrics),
	}

	var rateLimit *middleware.RateLimitMiddleware
	if redisClient != nil {
		rateLimit = middleware.NewRateLimitMiddleware(redisClient, logger, metrics)
	}

	server := api.NewServer(api.Deps{
		Logger:      logger,
		Metrics:     metrics,
		Chain:       chain,
		RateLimit:   rateLimit,
		Orgs:        orgService,
		Permissions: permStore,
		PermChecker: permChecker,
		Billing:     billingService,
		Usage:       usageService,
		Audit:       recorder,
		Tracing:     cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthHandler(db, redisClient, registry, cfg.Observability.MetricsEnabled),
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(inviteCleanupSchedule, func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		removed, err := orgService.CleanupExpiredInvites(cleanupCtx)
		if err != nil {
			logger.WithError(err).Error("expired invite cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("purged expired invites")
		}
	}); err != nil {
		return err
	}
	scheduler.Start()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		if providers != nil {
			if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
				logger.WithError(err).Warn("telemetry shutdown failed")
			}
		}
		return nil
	})

	return group.Wait()
}

func healthHandler(db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, metricsEnabled bool) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)
	router := mux.NewRouter()
	router.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	router.HandleFunc("/readyz", checker.Readiness).Methods("GET")
	if metricsEnabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}
	return router
}
