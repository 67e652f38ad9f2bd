// Kestrel - Fraud detection management backend.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/auth"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/stats"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	setupLogger(cfg.Logging)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	tokens, err := auth.NewManager(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTL)*time.Minute)
	if err != nil {
		slog.Error("failed to initialize auth", "error", err,
			"hint", "set KESTREL_AUTH_SECRET")
		os.Exit(1)
	}

	if err := seedAdminUser(ctx, repo); err != nil {
		slog.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	processor := pipeline.NewProcessor(repo, cacheImpl, busImpl, cfg.Cache.RuleSetTTL)
	statsSvc := stats.NewService(repo, cacheImpl)

	var notifier domain.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewEmailNotifier(cfg.SMTP, repo)
		slog.Info("email notifier initialized", "host", cfg.SMTP.Host)
	} else {
		notifier = notify.LogNotifier{}
		slog.Info("SMTP not configured, using log notifier")
	}

	notifyWorker := worker.NewWorker(busImpl, notifier, statsSvc)
	if err := notifyWorker.Start(); err != nil {
		slog.Error("failed to start notification worker", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, processor, statsSvc, tokens, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := notifyWorker.Stop(); err != nil {
		slog.Error("failed to stop notification worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// seedAdminUser creates the initial admin account on an empty user store.
// Credentials come from KESTREL_ADMIN_EMAIL / KESTREL_ADMIN_PASSWORD.
func seedAdminUser(ctx context.Context, repo domain.Repository) error {
	count, err := repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("KESTREL_ADMIN_EMAIL")
	password := os.Getenv("KESTREL_ADMIN_PASSWORD")
	if email == "" || password == "" {
		slog.Warn("no users exist and KESTREL_ADMIN_EMAIL/KESTREL_ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.SaveUser(ctx, admin); err != nil {
		return err
	}

	slog.Info("seeded initial admin user", "email", email)
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Fraud Detection Management            ║")
	fmt.Println("  ║      Score. Flag. Investigate.            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/auth/login          - Obtain an access token")
	fmt.Println("    POST /api/transactions        - Ingest and score a transaction")
	fmt.Println("    GET  /api/transactions        - List transactions")
	fmt.Println("    GET  /api/alerts              - List alerted transactions")
	fmt.Println("    GET  /api/rules               - List detection rules")
	fmt.Println("    GET  /api/cases               - List investigation cases")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println("    GET  /metrics                 - Prometheus metrics")
	fmt.Println()
}
