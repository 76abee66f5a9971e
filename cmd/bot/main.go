package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"photofx-bot/internal/access"
	"photofx-bot/internal/config"
	"photofx-bot/internal/image"
	"photofx-bot/internal/limiter"
	"photofx-bot/internal/settings"
	"photofx-bot/internal/store"
	"photofx-bot/internal/stylize"
	"photofx-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Create root context with cancellation
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// WaitGroup for tracking active goroutines
	var wg sync.WaitGroup

	// Open the persistence store and restore prior state
	var st store.Store
	switch cfg.Storage.Driver {
	case "json":
		st, err = store.NewJSONStore(cfg.Storage.Path)
	case "sqlite":
		st, err = store.NewSQLiteStore(cfg.Storage.Path)
	}
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		os.Exit(1)
	}

	var snap *access.Snapshot
	var saver access.Saver
	if st != nil {
		defer st.Close()
		saver = st
		snap, err = st.Load()
		if err != nil {
			logger.Error("failed to load state", "error", err)
			os.Exit(1)
		}
		logger.Info("state loaded",
			"users", len(snap.Users),
			"pending_requests", len(snap.Pending),
		)
	}

	admins := access.NewAdminSet(cfg.Telegram.AdminIDs)
	state := access.NewState(admins, snap, saver, logger)

	// Initialize stylize backend client
	backend := stylize.NewClient(cfg.Stylize, logger)

	// Initialize image processor
	imageProcessor := image.NewProcessor(cfg.Image.JPEGQuality)

	// One in-flight transform per user
	userLimiter := limiter.NewUserLimiter()

	// Runtime toggles
	runtimeSettings := settings.New()

	// Initialize Telegram bot
	bot, err := telegram.NewBot(cfg, state, backend, imageProcessor, userLimiter, runtimeSettings, logger)
	if err != nil {
		logger.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	// Start bot in goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bot.Run(rootCtx); err != nil && err != context.Canceled {
			logger.Error("bot error", "error", err)
		}
	}()

	logger.Info("bot started",
		"admin_ids", cfg.Telegram.AdminIDs,
		"stylize_url", cfg.Stylize.BaseURL,
		"storage_driver", cfg.Storage.Driver,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig)

	// Cancel root context to signal all goroutines
	rootCancel()

	// Wait for graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	// Final snapshot so nothing recorded mid-flight is lost
	if st != nil {
		if err := st.Save(state.Snapshot()); err != nil {
			logger.Error("failed to save state on shutdown", "error", err)
		}
	}
}
