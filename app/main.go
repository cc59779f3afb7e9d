package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-feeds/app/api"
	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting RSS Feeds server", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed definitions", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed definitions loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	feedStore := database.NewFeedStore(db)
	postStore := database.NewPostStore(db)

	factory := tasks.NewFactory(appCfg.UserAgent, appCfg.RequestTimeout)
	registry := tasks.NewRegistry(factory, feedStore,
		tasks.WithPollInterval(appCfg.PollInterval),
		tasks.WithBackoff(appCfg.BackoffIntervals),
	)

	defineConfiguredFeeds(registry, configCache)
	restoreStoredFeeds(context.Background(), registry, feedStore)

	handler := api.NewHandler(configCache, feedStore, postStore, registry)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "workers", registry.Count())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	registry.StopAll()

	slog.Info("RSS Feeds server shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// defineConfiguredFeeds starts a worker for every enabled feed definition.
func defineConfiguredFeeds(registry *tasks.Registry, configCache *feed.ConfigCache) {
	configs := configCache.GetEnabledConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := registry.Define(tasks.DefinitionFromConfig(configs[name])); err != nil {
			slog.Warn("Failed to define worker for feed definition", "feed", name, "error", err)
		}
	}
}

// restoreStoredFeeds resumes polling of feeds added through the API in an
// earlier run.
func restoreStoredFeeds(ctx context.Context, registry *tasks.Registry, store database.FeedRepository) {
	stored, err := store.GetAllFeeds(ctx)
	if err != nil {
		slog.Error("Failed to list stored feeds", "error", err)
		return
	}

	restored := registry.Restore(stored)
	slog.Info("Stored feeds restored", "stored", len(stored), "restored", restored)
}
