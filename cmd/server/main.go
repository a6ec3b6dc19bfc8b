package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"storepos/backend/internal/cache"
	"storepos/backend/internal/config"
	"storepos/backend/internal/httpapi"
	"storepos/backend/internal/logger"
	"storepos/backend/internal/metrics"
	"storepos/backend/internal/service"
	"storepos/backend/internal/store"
	"storepos/backend/internal/store/memory"
	pgstore "storepos/backend/internal/store/postgres"
)

const serviceName = "storepos-backend"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	appLog := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.IsDev(),
	})

	if err := run(cfg, appLog); err != nil {
		appLog.Error(context.Background(), "server.exit", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLog *logger.Logger) error {
	ctx := context.Background()
	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var closers []func() error

	repo, repoClose, err := openRepository(startCtx, cfg, appLog)
	if err != nil {
		return err
	}
	if repoClose != nil {
		closers = append(closers, repoClose)
	}

	statsCache := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(startCtx); err != nil {
			appLog.Warn(appLog.WithField(ctx, "error", err.Error()), "cache.redis_unavailable")
			_ = redisCache.Close()
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			appLog.Info(appLog.WithField(ctx, "addr", cfg.Redis.Addr), "cache.redis")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := service.New(repo, service.Options{
		StatsCache:    statsCache,
		StatsCacheTTL: cfg.Redis.StatsCacheTTL,
		Metrics:       metrics.NewSaleMetrics(reg),
		Logger:        appLog,
		Location:      loc,
	})
	auth := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.Auth.AccessTokenTTL)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigins:         cfg.App.AllowedOrigins,
		LoginAttemptsPerMinute: cfg.Auth.LoginAttemptsPerMinute,
		Location:               loc,
		Logger:                 appLog,
		HTTPMetrics:            metrics.NewHTTPMetrics(reg),
		Gatherer:               reg,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info(appLog.WithField(ctx, "addr", cfg.Address()), "server.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var result error
	select {
	case s := <-sig:
		appLog.Info(appLog.WithField(ctx, "signal", s.String()), "server.shutdown")
	case err := <-serveErr:
		result = multierr.Append(result, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		result = multierr.Append(result, fmt.Errorf("shutdown: %w", err))
	}
	for _, closeFn := range closers {
		result = multierr.Append(result, closeFn())
	}

	appLog.Info(ctx, "server.stopped")
	return result
}

// openRepository connects to Postgres when a DATABASE_URL is configured and
// falls back to the seeded in-memory store otherwise. A configured database
// that cannot be reached is fatal.
func openRepository(ctx context.Context, cfg *config.Config, appLog *logger.Logger) (store.Repository, func() error, error) {
	if cfg.DB.URL == "" {
		appLog.Info(ctx, "repository.memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DB.URL, pgstore.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := pgstore.Migrate(ctx, pg.DB()); err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("migrate: %w", err), pg.Close())
		}
		version, err := pgstore.MigrationVersion(ctx, pg.DB())
		if err == nil {
			ctx = appLog.WithField(ctx, "schema_version", version)
		}
	}
	appLog.Info(ctx, "repository.postgres")
	return pg, pg.Close, nil
}

func validateSecurityConfig(cfg *config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("POS_AUTH_SECRET must be set and at least 32 characters")
	}
	if _, err := cfg.App.Location(); err != nil {
		return fmt.Errorf("POS_TIMEZONE %q is not a known timezone: %w", cfg.App.Timezone, err)
	}
	if !cfg.App.IsDev() {
		for _, origin := range cfg.App.AllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				return fmt.Errorf("POS_ALLOWED_ORIGINS must list explicit origins outside dev")
			}
		}
		if cfg.DB.URL == "" {
			return fmt.Errorf("POS_DATABASE_URL is required outside dev")
		}
	}
	return nil
}
