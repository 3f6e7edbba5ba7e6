package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contesthub/internal/audit"
	"contesthub/internal/cache"
	"contesthub/internal/config"
	"contesthub/internal/database"
	"contesthub/internal/handlers"
	"contesthub/internal/jobs"
	"contesthub/internal/log"
	"contesthub/internal/middleware"
	"contesthub/internal/queue"
	"contesthub/internal/ratelimit"
	"contesthub/internal/repository"
	"contesthub/internal/security"
	"contesthub/internal/server"
	"contesthub/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	if cfg.Security.InsecureSecret {
		logger.Warn().Msg("running with a generated or short signing secret; sessions will not survive restarts")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	var limiterStore ratelimit.Store
	switch cfg.Security.RateLimitBackend {
	case config.RateLimitBackendRedis:
		limiterStore = ratelimit.NewRedisStore(redisClient)
	default:
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(limiterStore, ratelimit.Policy{
		MaxAttempts:     cfg.Security.MaxLoginAttempts,
		Window:          cfg.Security.AttemptWindow(),
		LockoutDuration: cfg.Security.LockoutDuration(),
	})

	signer, err := security.NewTokenSigner(cfg.Security.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid signing secret")
	}

	principalRepo := repository.NewPrincipalRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)
	taskRepo := repository.NewTaskRepository(dbPool)
	contestRepo := repository.NewContestRepository(dbPool)

	auditLog := audit.NewLogger(auditRepo, logger)

	authSvc := service.NewAuthService(principalRepo, sessionRepo, limiter, signer, auditLog, service.AuthConfig{
		AdminSessionTTL: cfg.Security.AdminSessionTTL(),
		TeamSessionTTL:  cfg.Security.TeamSessionTTL(),
	}, logger)
	principalSvc := service.NewPrincipalService(principalRepo, sessionRepo, auditLog, logger)
	contestSvc := service.NewContestService(contestRepo, taskRepo, auditLog, cfg.Contest.AutoSubmitDelay, logger)

	handlerSet := handlers.NewHandlerSet(logger, handlers.Dependencies{
		Auth:          authSvc,
		Contest:       contestSvc,
		Principals:    principalSvc,
		Audit:         auditRepo,
		Tasks:         taskRepo,
		Throttle:      middleware.NewIPThrottle(cfg.Security.LoginRatePerSecond, cfg.Security.LoginBurst, 10*time.Minute),
		PingDB:        dbPool.Ping,
		PingCache:     cache.Pinger(redisClient),
		Environment:   cfg.Environment,
		SecureCookies: cfg.IsProduction(),
		AdminTTL:      cfg.Security.AdminSessionTTL(),
		TeamTTL:       cfg.Security.TeamSessionTTL(),
	})

	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(taskRepo, queue.NewPublisher(redisClient, cfg.Worker.Stream), jobs.Config{
		DispatchSchedule: cfg.Contest.DispatchSchedule,
		MaintenanceCron:  cfg.Contest.MaintenanceCron,
		RedispatchAfter:  cfg.Contest.RedispatchAfter,
		BatchSize:        cfg.Contest.DispatchBatch,
		MaxAttempts:      cfg.Contest.MaxTaskAttempts,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
