package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"agriport/internal/app"
	"agriport/internal/config"
	"agriport/internal/handlers"
	"agriport/internal/logging"
	"agriport/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("AGRIPORT_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	if !a.Routing.CheckConnection(ctx) {
		logger.Warn("[OSRM] Routing service not reachable at startup; distances will be unreachable until it is",
			zap.String("base_url", cfg.OSRM.BaseURL))
	}

	handler := &handlers.Handler{
		Pipeline: a.Pipeline,
		Routing:  a.Routing,
		Results:  handlers.NewResultStore(handlers.DefaultResultCapacity, logger),
		Logger:   logger,
	}
	if a.HasStorage() {
		handler.Store = a
	}

	srv := server.New(server.Config{Addr: cfg.Server.Addr}, handler, a.Metrics, logger)

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("[HTTP] Listening", zap.String("addr", actualAddr), zap.String("grid_key", a.GridKey))

	<-ctx.Done()
	logger.Info("[HTTP] Received shutdown signal, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	logger.Info("[HTTP] Server stopped")
	return nil
}
