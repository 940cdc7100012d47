package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dominux/Pentaract/internal/server/api"
	"github.com/Dominux/Pentaract/internal/server/config"
	"github.com/Dominux/Pentaract/internal/server/database"
	"github.com/Dominux/Pentaract/internal/server/engine"
	"github.com/Dominux/Pentaract/internal/server/manager"
	"github.com/Dominux/Pentaract/internal/server/scheduler"
	"github.com/Dominux/Pentaract/internal/server/service"
	"github.com/Dominux/Pentaract/internal/server/telegram"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config (.env is optional)
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"chunk_size", cfg.ChunkSize,
		"rate_limit", cfg.RateLimit,
		"rate_window", cfg.RateWindow,
		"queue_capacity", cfg.QueueCapacity,
	)

	if cfg.SecretKey == "" {
		slog.Error("SECRET_KEY is required")
		os.Exit(1)
	}

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Repositories
	filesRepo := database.NewFilesRepository(db)
	storagesRepo := database.NewStoragesRepository(db)
	workersRepo := database.NewWorkersRepository(db, cfg.RateWindow)
	usersRepo := database.NewUsersRepository(db)
	accessRepo := database.NewAccessRepository(db)

	// Transfer pipeline: scheduler -> telegram client -> engine -> bridge
	sched := scheduler.New(workersRepo, cfg.RateLimit, cfg.SchedulerBackoff)
	tgClient := telegram.NewClient(cfg.TelegramAPIBaseURL)
	eng := engine.New(tgClient, sched, filesRepo, workersRepo, cfg.ChunkSize)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	mgr := manager.New(eng, cfg.QueueCapacity)
	mgr.Start(backgroundCtx)

	janitor := scheduler.NewJanitor(workersRepo, cfg.JanitorInterval)
	janitor.Start(backgroundCtx)

	// Services
	authSvc := service.NewAuthService(usersRepo, cfg.SecretKey, cfg.AccessTokenExpiry)
	storagesSvc := service.NewStoragesService(storagesRepo, accessRepo)
	workersSvc := service.NewStorageWorkersService(workersRepo, accessRepo)
	accessSvc := service.NewAccessService(accessRepo)
	filesSvc := service.NewFilesService(filesRepo, storagesRepo, workersRepo, accessRepo, mgr)

	// Superuser bootstrap
	if err := authSvc.EnsureSuperuser(ctx, cfg.SuperuserEmail, cfg.SuperuserPassword); err != nil {
		slog.Error("failed to create superuser", "error", err)
		os.Exit(1)
	}

	// Setup HTTP router
	handler := api.NewHandler(authSvc, storagesSvc, workersSvc, accessSvc, filesSvc, db)
	e := api.SetupRouter(handler, authSvc)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop background workers
	backgroundCancel()
	mgr.Wait()
	janitor.Wait()

	slog.Info("server exited cleanly")
}
