package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication: the marketing
// page, signup and infrastructure endpoints.
var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
	"/signup":  true,
}

// publicPrefixes covers route families that are public as a whole.
var publicPrefixes = []string{
	"/signup/",
	"/static/",
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether the given path is reachable without a token.
func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
