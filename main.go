package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/pbs-authority-api/config"
	"github.com/giygas/pbs-authority-api/data"
	"github.com/giygas/pbs-authority-api/handlers"
	"github.com/giygas/pbs-authority-api/health"
	"github.com/giygas/pbs-authority-api/logging"
	"github.com/giygas/pbs-authority-api/pbscatalog"
	"github.com/giygas/pbs-authority-api/scheduler"
	"github.com/giygas/pbs-authority-api/server"
	"github.com/giygas/pbs-authority-api/validation"
	"github.com/joho/godotenv"

	_ "net/http/pprof"
)

func main() {
	// .env is optional; environment variables win either way
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger("logs", cfg.LogRetentionWeeks, cfg.MaxLogFileSize, logging.ParseLevel(cfg.LogLevel))
	defer func() {
		if err := logging.Close(); err != nil {
			logging.Error("Failed to close log writer", "error", err)
		}
	}()

	upstreamTimeout := time.Duration(cfg.UpstreamTimeoutSec) * time.Second
	catalog := pbscatalog.NewClient(cfg.PBSBaseURL, cfg.PBSSubscriptionKey, upstreamTimeout)
	scraper := pbscatalog.NewScraper(cfg.PBSScrapeBaseURL, upstreamTimeout)
	validator := validation.NewInputValidator()

	statusContainer := data.NewStatusContainer()
	healthChecker := health.NewHealthChecker(statusContainer)

	probeScheduler := scheduler.NewScheduler(catalog, statusContainer, upstreamTimeout)
	if err := probeScheduler.Start(); err != nil {
		logging.Error("Failed to start upstream probe scheduler", "error", err)
		os.Exit(1)
	}
	defer probeScheduler.Stop()

	handler := handlers.NewHTTPHandler(catalog, scraper, validator, healthChecker, cfg.ProviderNumber)
	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}
