package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/api/middleware"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// ctxActor extracts the actor resolved by the Auth and Guard middleware and
// fast-fails before any service call when no signed-in user is present.
func ctxActor(c echo.Context) (domain.Actor, error) {
	actor := middleware.ActorFrom(c)
	if actor.UserID == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return actor, nil
}

// ctxRole reads the ?role= scope, defaulting to client.
func ctxRole(c echo.Context) (domain.Role, error) {
	raw := c.QueryParam("role")
	if raw == "" {
		return domain.RoleClient, nil
	}
	role, ok := domain.ParseRole(raw)
	if !ok {
		return domain.RoleNone, echo.NewHTTPError(http.StatusBadRequest, "role must be one of: client provider")
	}
	return role, nil
}
