package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/lead-dispatch/internal/api/http"
	"github.com/spec-kit/lead-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/lead-dispatch/internal/auth"
	"github.com/spec-kit/lead-dispatch/internal/bootstrap"
	"github.com/spec-kit/lead-dispatch/internal/config"
	"github.com/spec-kit/lead-dispatch/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to bootstrap", zap.Error(err))
	}
	defer app.Close()

	sweeperDone := make(chan struct{})
	if cfg.Sweeper.Enabled {
		go func() {
			defer close(sweeperDone)
			app.Sweeper.Run(ctx)
		}()
	} else {
		close(sweeperDone)
		logger.Info("sweeper disabled")
	}

	authMiddleware := auth.NewAuthMiddleware(app.Tokens, app.Repos.Brokers)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(server, logger, app.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, app.Postgres, app.Redis),
		Dispatch:       handlers.NewDispatchHandler(app.Dispatch),
		AuthMiddleware: authMiddleware,
		MetricsHandler: app.MetricsHandler,
	})

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := server.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	cancel()
	// app.Close runs after this; a mid-cycle expiry must not see closed pools.
	<-sweeperDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
