package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth. The login route takes extra middleware
// such as a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, loginMW ...echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/login", h.Login, loginMW...)
	g.GET("/me", h.Me)
	g.POST("/logout", h.Logout)
}

// loginRequest accepts OAuth2 password-form fields or a JSON body keyed by
// username or email.
type loginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login request")
	}
	login := req.Username
	if login == "" {
		login = req.Email
	}
	tok, err := h.svc.Login(c.Request().Context(), login, req.Password)
	if err != nil {
		he := apperr.HTTP(err)
		if he.Code == http.StatusUnauthorized {
			c.Response().Header().Set("WWW-Authenticate", "Bearer")
		}
		return he
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.MustActor(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), actor.UserID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	if err := h.svc.Logout(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Successfully logged out"})
}
