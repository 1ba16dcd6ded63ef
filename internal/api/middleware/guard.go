package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// retryAfterSeconds is sent with 503 while a verdict is outstanding.
const retryAfterSeconds = 1

// AuthorizeFunc turns a role state into an access decision.
type AuthorizeFunc func(state domain.RoleState, capability domain.Capability) domain.Decision

// Guard resolves the caller's role and enforces capability on the route.
// An undecided verdict is answered with 503 and Retry-After, never with a
// denial, and a scope mismatch is 403, never a logout.
func Guard(resolver ports.RoleService, authorize AuthorizeFunc, capability domain.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := resolver.Resolve(c.Request().Context(), PrincipalFrom(c))
			c.Set(roleStateKey, state)

			decision := authorize(state, capability)
			switch decision.Outcome {
			case domain.OutcomeAllow:
				return next(c)
			case domain.OutcomeAwaitVerdict:
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
				return echo.NewHTTPError(http.StatusServiceUnavailable, "role verdict pending")
			}

			he := echo.NewHTTPError(http.StatusForbidden, "forbidden")
			switch decision.Redirect {
			case domain.RedirectLogin:
				he = echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			case domain.RedirectClientHome:
				he.Message = "provider access required"
			case domain.RedirectOnboarding:
				he.Message = "profile required"
			}
			c.Response().Header().Set("X-Redirect", string(decision.Redirect))
			return he
		}
	}
}
