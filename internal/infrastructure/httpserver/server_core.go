package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tiered-cache/internal/core/ports"
	customMiddleware "github.com/avatarctic/tiered-cache/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type ServerDeps struct {
	CacheService ports.CacheService
	// RateLimiterService is optional; nil disables rate limiting.
	RateLimiterService ports.RateLimiterService
	HealthCheckers     []ports.HealthChecker
	// JWTSecret enables bearer auth on mutating routes when set.
	JWTSecret string
	// DefaultTTL applies to writes that omit ttl_seconds.
	DefaultTTL time.Duration
	InstanceID string
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	cacheService   ports.CacheService
	defaultTTL     time.Duration
	instanceID     string
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	defaultTTL := deps.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Second
	}

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		cacheService:   deps.CacheService,
		defaultTTL:     defaultTTL,
		instanceID:     deps.InstanceID,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.RateLimiterService,
			logger,
			deps.JWTSecret,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
