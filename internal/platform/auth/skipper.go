package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes are reachable without a bearer token, keyed by method and
// registered route path.
var publicRoutes = map[string]bool{
	"GET /":                       true,
	"GET /health":                 true,
	"GET /health/db":              true,
	"GET /metrics":                true,
	"POST /api/auth/login":        true,
	"POST /api/patients/register": true,
	"GET /api/doctors":            true,
	"GET /api/doctors/:id":        true,
}

// AuthSkipper reports whether the matched route is public.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
