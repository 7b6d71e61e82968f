package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chama-connect/internal/auth"
	"chama-connect/internal/cache"
	"chama-connect/internal/config"
	"chama-connect/internal/database"
	"chama-connect/internal/handlers"
	"chama-connect/internal/scheduler"
	"chama-connect/internal/services/notify"
	"chama-connect/internal/services/raffle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	jwtMgr := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer)
	settingsCache := cache.NewSettingsCache(cfg.SettingsCacheTTL, store.LoadRaffleSettings)

	var notifier raffle.Notifier = notify.NewLogNotifier(logger)
	if len(cfg.Notify.WebhookURLs) > 0 {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURLs, cfg.Notify.WebhookToken, cfg.Notify.From)
	}
	raffleSvc := raffle.NewService(store, settingsCache, store, notifier, logger, raffle.Config{
		Payout: cfg.PayoutAmount,
	})

	settingsRunner := scheduler.NewSettingsRunner(store, raffleSvc, cfg.SettingsScheduleSpec, logger)
	if err := settingsRunner.Start(ctx); err != nil {
		logger.Error("settings scheduler failed to start", "error", err, "spec", cfg.SettingsScheduleSpec)
		os.Exit(1)
	}
	defer settingsRunner.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	handler := handlers.NewHandler(cfg, store, raffleSvc, jwtMgr, logger)
	handlers.RegisterRoutes(r, handler, jwtMgr, cfg.AdminAllowedIPs)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	go func() {
		logger.Info("server starting", "port", cfg.HTTPPort, "timezone", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
