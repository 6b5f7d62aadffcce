package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/auth"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/pii"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/cache"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/memory"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/postgres"
	redisrepo "github.com/flopinger/leads-sample-sub000/internal/adapter/repository/redis"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/resilient"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/static"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/repository/wal"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/pkg/config"
	"github.com/flopinger/leads-sample-sub000/internal/pkg/logger"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"

	_ "github.com/lib/pq" // postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}
	renames, err := cfg.SourceRenames()
	if err != nil {
		logger.Error("invalid sanitizer renames", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAPIMetrics(reg)

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(reg),
	}
	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Datastore ---
	var (
		tenants   domain.TenantRepository
		workshops domain.WorkshopRepository
	)
	if cfg.PostgresURL == "" {
		logger.Warn("POSTGRES_URL is not set, API requests will be answered with 503")
	} else {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("postgres is not reachable yet", "error", err)
		}

		breaker := resilient.NewBreaker(resilient.Settings{
			Name:        "postgres",
			Timeout:     cfg.DatastoreTimeout,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		}, m, logger)

		tenants = resilient.NewTenantRepository(postgres.NewTenantRepository(db, logger, cfg.UnknownKeyCacheTTL, m), breaker)
		workshops = resilient.NewWorkshopRepository(postgres.NewWorkshopRepository(db, logger), breaker)

		if cfg.WorkshopCacheTTL > 0 {
			cached, err := cache.NewWorkshopRepository(workshops, cfg.WorkshopCacheSize, cfg.WorkshopCacheTTL, m)
			if err != nil {
				logger.Error("failed to initialize workshop cache", "error", err)
				os.Exit(1)
			}
			defer cached.Close()
			workshops = cached
		}
	}

	events, err := static.LoadEventRepository(map[domain.EventType]string{
		domain.EventFounding:         cfg.FoundingsDataPath,
		domain.EventManagementChange: cfg.ManagementChangesDataPath,
	}, logger)
	if err != nil {
		logger.Error("failed to load event datasets", "error", err)
		os.Exit(1)
	}

	// --- Usage tracking ---
	var lock domain.UsageLock
	switch cfg.UsageFallbackLock {
	case "memory":
		lock = memory.NewUsageLock()
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		redisLock := redisrepo.NewUsageLock(redisClient, cfg.UsageLockTTL, logger)
		if err := redisLock.Ping(ctx); err != nil {
			logger.Warn("could not connect to redis, fallback increments will fail until it is reachable", "error", err)
		}
		lock = redisLock
	}

	var journal domain.UsageJournal
	if cfg.UsageJournalPath != "" {
		j, err := wal.NewJournal(cfg.UsageJournalPath, cfg.UsageJournalSegmentSize, cfg.UsageJournalMaxDiskSize, logger)
		if err != nil {
			logger.Error("failed to initialize usage journal", "error", err)
			os.Exit(1)
		}
		defer j.Close()
		journal = j
	}

	tracker := usecase.NewUsageTracker(tenants, lock, journal, m, logger)
	if _, err := tracker.ReplayJournal(ctx); err != nil {
		logger.Warn("startup usage journal replay incomplete", "error", err)
	}
	go tracker.StartReplayLoop(ctx, cfg.UsageJournalReplayInterval)

	// --- Use cases ---
	sanitizer := pii.NewSanitizer(pii.Options{
		SourceRenames:   renames,
		InternalMarker:  cfg.SanitizerInternalMarker,
		ExcludedDomains: cfg.SanitizerExcludedEmailDomain,
		ExcludedEmails:  cfg.SanitizerExcludedEmails,
	}, logger)
	workshopService := usecase.NewWorkshopService(workshops, sanitizer, logger)

	deps := api.Dependencies{
		Logger:                  logger,
		Metrics:                 m,
		Location:                loc,
		Authenticator:           usecase.NewAuthenticator(tenants, loc, logger),
		Tracker:                 tracker,
		Workshops:               workshopService,
		Events:                  usecase.NewEventService(events, workshops, sanitizer, logger),
		RateLimitPerMinute:      cfg.RateLimitPerMinute,
		LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
		CORSAllowedOrigins:      cfg.CORSAllowedOrigins,
		SessionTTL:              cfg.SessionTTL,
		CookieSecure:            cfg.CookieSecure,
	}
	if cfg.DashboardEnabled() {
		tokens := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
		deps.Sessions = tokens
		deps.Dashboard = usecase.NewDashboardService(tenants, workshopService, tokens, usecase.AdminAccount{
			Username: cfg.DashboardUsername,
			Password: cfg.DashboardPassword,
		}, logger)
	} else {
		logger.Info("JWT_SECRET is not set, dashboard routes are disabled")
	}

	// --- API Server ---
	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
