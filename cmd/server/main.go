package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/bucketsync/internal/api"
	"github.com/andresuchdata/bucketsync/internal/bucketsync"
	"github.com/andresuchdata/bucketsync/internal/config"
	"github.com/andresuchdata/bucketsync/internal/service"
	"github.com/andresuchdata/bucketsync/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Log.Level)
	if cfg.Log.Format == "json" {
		logger.SetJSON(os.Stderr)
	}
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	profile, err := cfg.Store.ConnectionProfile()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid connection profile")
	}
	client := bucketsync.New(cfg.Store.Credentials(), bucketsync.WithProfile(profile))

	// Fail fast on unreachable stores or a missing bucket
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.CheckBuckets(startCtx); err != nil {
		cancelStart()
		logger.Log.Fatal().Err(err).Msg("Object store check failed")
	}
	cancelStart()

	transferService := service.NewTransferService(client, cfg.Transfer.LocalDir, cfg.Server.MaxConcurrentJobs)

	router := api.NewRouter(&api.Services{TransferService: transferService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("bucket", client.Bucket()).
			Str("profile", profile.Name).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// Transfers in flight get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
