package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/api"
	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/cfg"
	"github.com/adamjohnlea/discogs-helper/app/collection"
	"github.com/adamjohnlea/discogs-helper/app/database"
	"github.com/adamjohnlea/discogs-helper/app/export"
	"github.com/adamjohnlea/discogs-helper/app/importer"
	"github.com/adamjohnlea/discogs-helper/app/lastfm"
	"github.com/adamjohnlea/discogs-helper/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Discogs Helper server...", "version", appConfig.Version)

	// Database connection and migrations
	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	// Repositories
	releaseRepo := database.NewReleaseRepository(db)
	wantlistRepo := database.NewWantlistRepository(db)
	importRepo := database.NewImportRepository(db)

	// External clients
	httpClient := &http.Client{Timeout: 60 * time.Second}
	catalogClient := catalog.NewClient(httpClient, appConfig.DiscogsToken, appConfig.UserAgent, appConfig.CoversDir)
	lastfmClient := lastfm.NewClient(httpClient, appConfig.LastfmAPIKey, appConfig.UserAgent)

	// Core services
	orchestrator := importer.NewOrchestrator(catalogClient, importRepo, releaseRepo, appConfig.ImportPageSize)
	collectionSvc := collection.NewService(catalogClient, releaseRepo, wantlistRepo)

	siteConfig, err := export.LoadSiteConfig(appConfig.ExportConfigFile)
	if err != nil {
		slog.Warn("Failed to load export config, using defaults", "error", err)
	}
	exporter, err := export.NewGenerator(appConfig.ExportDir, appConfig.CoversDir)
	if err != nil {
		log.Fatal("Failed to initialize snapshot generator: ", err)
	}

	// Background scheduler
	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "interval_seconds", appConfig.SchedulerInterval)
	scheduler := tasks.NewScheduler(importRepo)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	apiHandler := api.NewHandler(catalogClient, lastfmClient, releaseRepo, wantlistRepo,
		collectionSvc, orchestrator, exporter, siteConfig, scheduler)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	// Graceful shutdown
	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Discogs Helper shutdown complete")
}
