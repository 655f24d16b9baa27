package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lexisync/lexisync/internal/auth"
	"github.com/lexisync/lexisync/internal/config"
	"github.com/lexisync/lexisync/internal/database"
	"github.com/lexisync/lexisync/internal/logging"
	"github.com/lexisync/lexisync/internal/repositories"
	"github.com/lexisync/lexisync/internal/server"
	"github.com/lexisync/lexisync/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	if err := database.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations", "error", err)
		return
	}

	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to create redis client", "error", err)
		return
	}
	defer redisClient.Close()

	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	listRepo := repositories.NewPostgresListRepository(postgresPool)
	entryRepo := repositories.NewPostgresEntryRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)

	verifier := auth.NewVerifier(cfg.ServerID, cfg.AssertionLeeway)
	sessionService := services.NewSessionService(sessionRepo, cfg.SessionTTL)
	accountService := services.NewAccountService(accountRepo, sessionService, verifier, logger)
	syncService := services.NewSyncService(listRepo, entryRepo, accountRepo, logger)

	srv := server.NewServer(cfg, logger, accountService, sessionService, syncService)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
}
