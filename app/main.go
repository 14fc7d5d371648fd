package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/api"
	"github.com/lysyi3m/media-report/app/cfg"
	"github.com/lysyi3m/media-report/app/database"
	"github.com/lysyi3m/media-report/app/feed"
	"github.com/lysyi3m/media-report/app/logger"
	"github.com/lysyi3m/media-report/app/metrics"
	"github.com/lysyi3m/media-report/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logger.Init(appCfg.Debug)

	logger.Log.WithFields(logrus.Fields{
		"version":  appCfg.Version,
		"timezone": appCfg.Location.String(),
	}).Info("Starting Media Report server")

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to run migrations")
	}
	logger.Log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Database migrations applied")

	sourceRepo := database.NewSourceRepository(db)
	snapshotRepo := database.NewSnapshotRepository(db)

	configCache := feed.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to load source configurations")
	}
	logger.Log.WithFields(logrus.Fields{
		"count": configCache.GetConfigCount(),
		"dir":   appCfg.SourcesDir,
	}).Info("Source configurations loaded")

	registry := feed.NewRegistry()
	appMetrics := metrics.New()

	pipeline := &tasks.Pipeline{
		Fetcher:      feed.NewFetcher(&http.Client{}, appCfg.UserAgent),
		Parser:       feed.NewParser(feed.NewContentExtractor()),
		SourceRepo:   sourceRepo,
		SnapshotRepo: snapshotRepo,
		Registry:     registry,
		Configs:      configCache,
		Metrics:      appMetrics,
		Location:     appCfg.Location,
	}

	scheduler := tasks.NewScheduler(configCache, pipeline, appCfg.GetSchedulerInterval(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if appCfg.Watch {
		watcher, err := feed.NewConfigWatcher(configCache,
			func(config *feed.Config) {
				if _, err := scheduler.Reload(config); err != nil {
					logger.Log.WithFields(logrus.Fields{"feed": config.Name, "error": err}).Error("Failed to reload source")
				}
			},
			func(name string) {
				if err := scheduler.Remove(name); err != nil {
					logger.Log.WithFields(logrus.Fields{"feed": name, "error": err}).Error("Failed to remove source")
				}
			})
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to start source config watcher")
		}
		defer watcher.Close()

		go watcher.Run(ctx)
		logger.Log.WithField("dir", appCfg.SourcesDir).Info("Watching source configurations")
	}

	handler := api.NewHandler(configCache, registry, feed.NewFilterer(), sourceRepo, scheduler, appMetrics)
	server := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey, appMetrics.Handler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Log.WithField("port", appCfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Log.WithField("signal", sig.String()).Info("Received signal")
	case err := <-serverErrChan:
		logger.Log.WithError(err).Error("Server error")
	}

	logger.Log.Info("Shutting down server gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("HTTP server shutdown error")
	}

	logger.Log.Info("Media Report server shutdown complete")
}
