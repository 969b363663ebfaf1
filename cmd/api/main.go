package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentiment-dashboard/internal/api"
	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/internal/utils"
	"sentiment-dashboard/internal/workflow"
)

func main() {
	var (
		configFile = flag.String("config", "configs/config.yaml", "Configuration file path")
		port       = flag.Int("port", 0, "API server port (overrides config)")
		migrate    = flag.Bool("migrate", true, "Apply database migrations on startup")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *migrate {
		if err := db.RunMigrations(context.Background()); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	tokens, err := auth.NewJWTManager(cfg.Auth)
	if err != nil {
		logger.Fatalf("Failed to set up authentication: %v", err)
	}
	authz, err := auth.NewAuthorizer()
	if err != nil {
		logger.Fatalf("Failed to set up authorization: %v", err)
	}

	deps := api.Deps{
		Store:          db,
		Tokens:         tokens,
		Authorizer:     authz,
		CallbackSecret: cfg.Workflow.CallbackSecret,
		Logger:         logger,
	}

	wf := workflow.NewClient(cfg.Workflow, logger)
	if wf.Enabled() {
		deps.Workflow = wf
		deps.Monitor = monitoring.NewMonitor(logger, db, wf)
	} else {
		logger.Warn("Workflow webhook not configured; scrape requests are disabled")
		deps.Monitor = monitoring.NewMonitor(logger, db, nil)
	}

	server := api.NewServer(cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
