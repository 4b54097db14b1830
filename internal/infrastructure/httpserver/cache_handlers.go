package httpserver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tiered-cache/internal/core/domain/cache"
	"github.com/avatarctic/tiered-cache/internal/infrastructure/httpserver/helpers"
)

type entryRequest struct {
	Value *string `json:"value"`
	// TTLSeconds falls back to the server default when omitted.
	TTLSeconds *float64 `json:"ttl_seconds"`
}

type entryResponse struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
}

type partialResponse struct {
	Partial bool   `json:"partial"`
	Error   string `json:"error"`
}

func (s *Server) getEntry(c echo.Context) error {
	key, err := helpers.GetKeyParam(c)
	if err != nil {
		return err
	}
	if err := cache.ValidateKey(key); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	value, ok := s.cacheService.Get(c.Request().Context(), key)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "key not found")
	}
	return c.JSON(http.StatusOK, entryResponse{Key: key, Value: value})
}

func (s *Server) putEntry(c echo.Context) error {
	key, value, ttl, err := s.bindEntry(c)
	if err != nil {
		return err
	}
	if err := s.cacheService.Set(c.Request().Context(), key, value, ttl); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteEntry(c echo.Context) error {
	key, err := helpers.GetKeyParam(c)
	if err != nil {
		return err
	}
	if err := s.cacheService.Delete(c.Request().Context(), key); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// resolveEntry returns the cached value, storing the supplied one only when
// the key is absent from both tiers.
func (s *Server) resolveEntry(c echo.Context) error {
	key, value, ttl, err := s.bindEntry(c)
	if err != nil {
		return err
	}
	current, err := s.cacheService.Resolve(c.Request().Context(), key, ttl, func(context.Context) (string, error) {
		return value, nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrPartialFailure) {
			return c.JSON(http.StatusAccepted, entryResponse{Key: key, Value: current, Partial: true, Error: err.Error()})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, entryResponse{Key: key, Value: current})
}

func (s *Server) bindEntry(c echo.Context) (key, value string, ttl time.Duration, err error) {
	key, err = helpers.GetKeyParam(c)
	if err != nil {
		return "", "", 0, err
	}
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return "", "", 0, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Value == nil {
		return "", "", 0, echo.NewHTTPError(http.StatusBadRequest, "value is required")
	}
	ttl = s.defaultTTL
	if req.TTLSeconds != nil {
		secs := *req.TTLSeconds
		if math.IsNaN(secs) || math.Abs(secs) > math.MaxInt64/float64(time.Second) {
			return "", "", 0, echo.NewHTTPError(http.StatusBadRequest, "ttl_seconds out of range")
		}
		ttl = time.Duration(secs * float64(time.Second))
	}
	return key, *req.Value, ttl, nil
}

// writeError maps coordinator errors onto HTTP responses. A partial failure
// is not an error for the caller: the local tier holds the write.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, cache.ErrInvalidTTL), errors.Is(err, cache.ErrEmptyKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cache.ErrPartialFailure):
		return c.JSON(http.StatusAccepted, partialResponse{Partial: true, Error: err.Error()})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
