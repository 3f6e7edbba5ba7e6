package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"contesthub/internal/audit"
	"contesthub/internal/cache"
	"contesthub/internal/config"
	"contesthub/internal/database"
	"contesthub/internal/log"
	"contesthub/internal/queue"
	"contesthub/internal/repository"
	"contesthub/internal/service"
	"contesthub/internal/storage"
	"contesthub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure audit bucket failed")
	}

	taskRepo := repository.NewTaskRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)
	contestRepo := repository.NewContestRepository(dbPool)

	auditLog := audit.NewLogger(auditRepo, logger)
	contestSvc := service.NewContestService(contestRepo, taskRepo, auditLog, cfg.Contest.AutoSubmitDelay, logger)
	archiver := service.NewAuditArchiver(auditRepo, objectStore, logger)

	processor := tasks.NewProcessor(taskRepo, contestSvc, sessionRepo, archiver, tasks.RetryPolicy{
		MaxAttempts: cfg.Contest.MaxTaskAttempts,
		BaseDelay:   30 * time.Second,
		MaxDelay:    30 * time.Minute,
	}, logger)

	consumer := queue.NewConsumer(
		redisClient,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
