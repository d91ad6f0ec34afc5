package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

const panicStackSize = 4 << 10

// Recovery turns a handler panic into a 500 and logs it with the route and,
// once authenticated, the calling user. http.ErrAbortHandler is re-raised so
// net/http can drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				ev := logger.Error().
					Str("request_id", requestID(c)).
					Str("method", c.Request().Method).
					Str("route", c.Path())
				if actor, ok := auth.ActorFromContext(c.Request().Context()); ok {
					ev = ev.Int64("user_id", actor.UserID).Str("role", actor.Role.String())
				}
				if perr, ok := r.(error); ok {
					ev = ev.Err(perr)
				} else {
					ev = ev.Str("panic", fmt.Sprint(r))
				}
				ev.Bytes("stack", stack).Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
