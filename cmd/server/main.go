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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"salesdesk/backend/internal/cache"
	"salesdesk/backend/internal/config"
	"salesdesk/backend/internal/httpapi"
	"salesdesk/backend/internal/logging"
	"salesdesk/backend/internal/metrics"
	"salesdesk/backend/internal/service"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/store/memory"
	pgstore "salesdesk/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{
		ServiceName: "salesdesk",
		Level:       logging.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DB.URL != "" {
		pg, err := pgstore.New(startCtx, cfg.DB.URL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.DB.AutoMigrate {
			if err := pgstore.Migrate(startCtx, pg.DB(), "up"); err != nil {
				return multierr.Append(err, pg.Close())
			}
			logger.Info(startCtx, "migrations applied")
		}
		repo = pg
		logger.Info(logger.WithField(startCtx, "repository", "postgres"), "repository ready")
	} else {
		repo = memory.NewSeeded()
		logger.Info(logger.WithField(startCtx, "repository", "memory"), "repository ready")
	}

	reports := cache.ReportCache(cache.NoopReportCache{})
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisReportCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(startCtx); err != nil {
			logger.Warn(startCtx, "redis unavailable, using noop report cache", err)
			_ = redisCache.Close()
		} else {
			reports = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info(logger.WithField(startCtx, "cache", "redis"), "report cache ready")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.New(repo,
		service.WithLocation(loc),
		service.WithReportCache(reports, cfg.Redis.ReportCacheTTL),
		service.WithMetrics(metrics.NewSaleMetrics(registry)),
		service.WithLogger(logger),
	)
	auth := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.AdminPassword, svc)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.App.AllowedOrigin,
		Logger:        logger,
		Gatherer:      registry,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(logger.WithField(ctx, "addr", cfg.Address()), "salesdesk backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case <-sig:
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	runErr = multierr.Append(runErr, server.Shutdown(shutdownCtx))
	for _, closeFn := range closers {
		runErr = multierr.Append(runErr, closeFn())
	}

	logger.Info(ctx, "server stopped")
	return runErr
}

var commonPasswords = map[string]bool{
	"password": true, "password1": true, "12345678": true, "123456789": true,
	"qwertyui": true, "qwerty123": true, "admin123": true, "adminadmin": true,
	"iloveyou": true, "11111111": true, "00000000": true, "abcdefgh": true,
	"letmein1": true, "changeme": true,
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.Auth.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	if err := validatePasswordStrength(cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects common passwords and single repeated
// characters.
func validatePasswordStrength(password string) error {
	if commonPasswords[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}
	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("repeated-character password not allowed")
	}
	return nil
}
