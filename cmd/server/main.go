package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirasaad/fxdate/infra/initializer"
	"github.com/amirasaad/fxdate/pkg/app"
	"github.com/amirasaad/fxdate/pkg/config"
	"github.com/amirasaad/fxdate/webapi"
	log "github.com/charmbracelet/log"
)

// @title fxdate API
// @version 1.0.0
// @description Currency conversion sessions over historical exchange rates
// @contact.name API Support
// @license.name MIT
// @host localhost:3000
// @BasePath /
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	// Initialize all dependencies
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	logger := deps.Logger

	a, err := app.New(deps, cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)

	// Setup Fiber app with all routes and middleware
	fiberApp := webapi.SetupApp(a)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- fiberApp.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := fiberApp.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
