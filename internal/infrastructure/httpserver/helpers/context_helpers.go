package helpers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

const keySubject = "subject"

// GetJWTTokenFromContext extracts the bearer token from the Authorization header.
func GetJWTTokenFromContext(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}

func SetSubject(c echo.Context, sub string) { c.Set(keySubject, sub) }

// GetSubject returns the authenticated token subject, if any.
func GetSubject(c echo.Context) (string, bool) {
	sub, ok := c.Get(keySubject).(string)
	return sub, ok && sub != ""
}

// GetKeyParam returns the :key path parameter, unescaping it when the
// request carried an escaped path.
func GetKeyParam(c echo.Context) (string, error) {
	key := c.Param("key")
	if c.Request().URL.RawPath == "" {
		return key, nil
	}
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid key encoding")
	}
	return unescaped, nil
}
