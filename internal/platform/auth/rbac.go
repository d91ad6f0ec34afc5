package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects callers whose role is not listed. It must run after
// ActorMiddleware.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := MustActor(c)
			if err != nil {
				return err
			}
			if !allowed[actor.Role] {
				return echo.NewHTTPError(http.StatusForbidden, "Not enough permissions")
			}
			return next(c)
		}
	}
}
