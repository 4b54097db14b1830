package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/tiered-cache/configs"
	"github.com/avatarctic/tiered-cache/internal/application/services"
	"github.com/avatarctic/tiered-cache/internal/core/ports"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/health"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/httpserver"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/memory"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/metrics"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/redis"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	instanceID := uuid.NewString()
	logger.WithField("instance_id", instanceID).Info("Starting tiered cache...")

	// The distributed tier is optional at startup: the local tier serves
	// while Redis is unreachable.
	redisClient := redis.NewUniversalClient(&cfg.Redis)
	defer redisClient.Close()
	if err := redis.Ping(context.Background(), redisClient, cfg.Redis.DialTimeout); err != nil {
		logger.WithError(err).Warn("Redis unreachable; starting in local-only degraded mode")
	} else {
		logger.Info("Connected to Redis successfully")
	}

	cacheMetrics := metrics.NewCacheMetrics(prometheus.DefaultRegisterer)

	store := memory.NewStore(
		memory.WithShards(cfg.Cache.Shards),
		memory.WithSweepEvery(uint64(cfg.Cache.SweepEveryOps)),
		memory.WithMetrics(cacheMetrics),
	)
	remote := redis.NewRedisCache(redisClient, cfg.Redis.KeyPrefix)

	cacheService := services.NewCacheService(store, remote, &services.CacheServiceConfig{
		RepopulationTTL:    cfg.Cache.RepopulationTTL,
		RepopulationTTLMax: cfg.Cache.RepopulationTTLMax,
		RemoteTimeout:      cfg.Cache.RemoteTimeout,
	}, cacheMetrics, logger)

	sweeper := services.NewSweeper(store, &services.SweeperConfig{Interval: cfg.Cache.SweepInterval}, cacheMetrics, logger)
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start sweeper:", err)
	}
	defer sweeper.Stop()

	// Rate limiting is opt-in
	var rateLimiter ports.RateLimiterService
	if cfg.RateLimit.RequestsPerMinute > 0 {
		rateLimiter = services.NewRateLimiterService(repositories.NewRateLimitRedisRepository(redisClient), &services.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstMultiplier:   cfg.RateLimit.BurstMultiplier,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         cfg.RateLimit.KeyPrefix,
		}, logger)
	}

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		CacheService:       cacheService,
		RateLimiterService: rateLimiter,
		HealthCheckers:     []ports.HealthChecker{health.NewRedisHealthChecker(redisClient)},
		JWTSecret:          cfg.Auth.JWTSecret,
		DefaultTTL:         cfg.Cache.DefaultTTL,
		InstanceID:         instanceID,
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
