// @title RescueMe daemon API
// @version 0.1.0
// @description JSON-RPC 2.0 API of the rescued personal safety daemon.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/internal/api"
	"github.com/danghamo/rescueme/internal/app"
	"github.com/danghamo/rescueme/pkg/config"
)

func main() {
	// Initialize configuration and logger
	cfg, log, err := config.Initialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Ensure logger is flushed on exit
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting rescued",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Server.Environment),
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rescue, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to assemble application", zap.Error(err))
	}
	defer func() {
		if err := rescue.Close(); err != nil {
			log.Error("Failed to close application", zap.Error(err))
		}
	}()

	apiServer, err := api.NewServer(cfg, rescue, log)
	if err != nil {
		log.Fatal("Failed to create API server", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		cancel()
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start(ctx)
	}()

	// events published before the router runs would be lost
	select {
	case <-rescue.Bus.Running():
		if err := rescue.Start(ctx); err != nil {
			log.Error("Failed to start application", zap.Error(err))
			cancel()
		}
	case <-ctx.Done():
	}

	if err := <-serverErr; err != nil {
		log.Error("Server error", zap.Error(err))
		return
	}

	log.Info("Server gracefully stopped")
}
