// Package main provides the BaselineGate API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/baselinegate/baselinegate/internal/api"
	"github.com/baselinegate/baselinegate/internal/auth"
	"github.com/baselinegate/baselinegate/internal/config"
	"github.com/baselinegate/baselinegate/internal/credits"
	"github.com/baselinegate/baselinegate/internal/database"
	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/internal/jobs"
	"github.com/baselinegate/baselinegate/internal/logging"
	"github.com/baselinegate/baselinegate/internal/pipeline"
	"github.com/baselinegate/baselinegate/internal/provider"
	"github.com/baselinegate/baselinegate/internal/repocheck"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("BASELINEGATE_CONFIG"), "Path to YAML config file")
		migrateOnly = flag.Bool("migrate", false, "Run migrations and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url is required (BASELINEGATE_DATABASE_URL)")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, "baselinegate")

	logger.Info("running database migrations")
	if err := database.Migrate(cfg.Database.URL); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	if *migrateOnly {
		return
	}

	ctx := context.Background()
	db, err := database.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	verifier, err := auth.NewVerifier(auth.Config{
		Domain:   cfg.Auth.Domain,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create auth verifier")
	}

	// Redis-backed queue when configured, in-memory otherwise.
	var store jobs.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		defer client.Close()
		store = jobs.NewRedisStore(client)
		logger.WithField("addr", cfg.Redis.Addr).Info("using redis job store")
	} else {
		store = jobs.NewMemoryStore()
		logger.Info("using in-memory job store")
	}

	extractor := extract.New(extract.Config{
		BaseURL:      cfg.Extractor.BaseURL,
		APIKey:       cfg.Extractor.APIKey,
		Timeout:      cfg.Extractor.Timeout,
		MaxRepoBytes: cfg.Extractor.MaxRepoBytes,
	})

	queue := jobs.NewManager(store, extractor, cfg.Queue.PerJobDuration, logger)
	validator := repocheck.NewValidator(cfg.Validator.AllowedHosts, cfg.Validator.Timeout)
	failover := provider.NewFailover(logger)
	ledger := credits.NewLedger(db, cfg.Credits)

	orchestrator := pipeline.New(validator, queue, failover, ledger, db, db, cfg.Queue, logger)

	server := api.NewServer(api.Config{
		Pipeline:  orchestrator,
		Records:   db,
		Providers: db,
		Tester:    failover,
		Verifier:  verifier,
		RateLimit: cfg.RateLimit,
		Log:       logger,
	})

	// Sweep terminal jobs past the retention age.
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(cfg.Queue.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				removed, err := queue.Cleanup(cleanupCtx, cfg.Queue.CleanupMaxAge)
				if err != nil {
					logger.WithError(err).Warn("queue cleanup failed")
					continue
				}
				if removed > 0 {
					logger.WithField("removed", removed).Info("cleaned up terminal jobs")
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("server shutdown failed")
	}

	logger.Info("server stopped")
}
