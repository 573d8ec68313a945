package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/api"
	"github.com/slanglab/backend/internal/auth"
	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/entitlement"
	"github.com/slanglab/backend/internal/monitoring"
	"github.com/slanglab/backend/internal/notifications"
	"github.com/slanglab/backend/internal/scheduler"
	"github.com/slanglab/backend/internal/sourcerules"
	"github.com/slanglab/backend/internal/sources"
	"github.com/slanglab/backend/internal/storage"
	"github.com/slanglab/backend/internal/usage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting SlangLab backend")

	db, rdb, err := storage.Connect(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to backends: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := storage.SeedPlanLimits(ctx, db); err != nil {
		cancel()
		logrus.Fatalf("Failed to seed plan limits: %v", err)
	}
	cancel()

	store := storage.NewStore(db)
	meter := usage.NewMeter(db)
	anon := entitlement.NewAnonymousQuota(rdb)
	rules := sourcerules.NewService(db, rdb, cfg.SourceRuleTTL)

	// Evidence providers
	srcs := []sources.Source{
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret),
		sources.NewTwitterSource(cfg.TwitterBearerToken),
		sources.NewYouTubeSource(cfg.YouTubeAPIKey),
		sources.NewWebSearchSource(cfg.SearchAPIKey, cfg.SearchEngineID),
	}

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	sourceNames := make([]string, 0, len(srcs))
	for _, src := range srcs {
		sourceNames = append(sourceNames, src.GetName())
	}
	if err := rules.Seed(seedCtx, sourceNames, cfg.DefaultMinScore); err != nil {
		seedCancel()
		logrus.Fatalf("Failed to seed source rules: %v", err)
	}
	seedCancel()

	// Raw sighting batch archive (optional)
	var archive monitoring.Archive
	if cfg.StorageAccount != "" {
		blobArchive, err := storage.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive: %v", err)
		}
		archive = blobArchive
	}

	notifier := notifications.NewService(cfg)
	monitorService := monitoring.NewService(cfg, store, rules, archive, notifier, srcs)

	schedulerService := scheduler.NewService(cfg, monitorService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	resolver := auth.NewResolver(cfg.JWTSecret, store)
	apiServer := api.NewServer(cfg, store, meter, anon, rules, monitorService, resolver)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
