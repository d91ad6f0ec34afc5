package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	ActorKey    contextKey = "actor"
)

// Identity is what a verified access token says about its bearer.
type Identity struct {
	UserID    int64
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

type JWTConfig struct {
	SigningKey  []byte
	Issuer      string
	Skipper     func(c echo.Context) bool
	Revocations RevocationStore
	Logger      zerolog.Logger
}

// JWTMiddleware verifies the bearer token and stores the Identity on the
// request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
			}
			uid, err := claims.UserID()
			if err != nil || !claims.Role.Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
			}

			ctx := c.Request().Context()
			if cfg.Revocations != nil && claims.ID != "" {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Error().Err(err).Msg("revocation lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication unavailable")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "Token has been revoked")
				}
			}

			id := Identity{UserID: uid, Role: claims.Role, TokenID: claims.ID}
			if claims.ExpiresAt != nil {
				id.ExpiresAt = claims.ExpiresAt.Time
			}
			c.SetRequest(c.Request().WithContext(context.WithValue(ctx, IdentityKey, id)))
			return next(c)
		}
	}
}

// ActorResolver loads the account behind an identity and its linked
// profiles. It returns an *apperr.Error for unknown or inactive users.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID int64) (Actor, error)
}

// ActorMiddleware turns the Identity left by JWTMiddleware into an Actor.
// Requests without an identity pass through untouched.
func ActorMiddleware(resolver ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id, ok := IdentityFromContext(ctx)
			if !ok {
				return next(c)
			}
			actor, err := resolver.ResolveActor(ctx, id.UserID)
			if err != nil {
				return apperr.HTTP(err)
			}
			c.SetRequest(c.Request().WithContext(WithActor(ctx, actor)))
			return next(c)
		}
	}
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ActorKey).(Actor)
	return a, ok
}

// MustActor returns the request's actor or a 401 for handlers mounted
// behind authentication.
func MustActor(c echo.Context) (Actor, error) {
	a, ok := ActorFromContext(c.Request().Context())
	if !ok {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return a, nil
}
