package httpserver

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1", s.middleware.RateLimit.Handler())

	entries := api.Group("/cache")
	entries.GET("/:key", s.getEntry)
	entries.PUT("/:key", s.putEntry, s.writeGuards()...)
	entries.DELETE("/:key", s.deleteEntry, s.writeGuards()...)
	entries.POST("/:key/resolve", s.resolveEntry, s.writeGuards()...)
}

// writeGuards returns the middleware applied to mutating routes.
func (s *Server) writeGuards() []echo.MiddlewareFunc {
	if !s.middleware.JWT.Enabled() {
		return nil
	}
	return []echo.MiddlewareFunc{s.middleware.JWT.RequireJWT()}
}
