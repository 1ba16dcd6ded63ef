package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const (
	principalKey = "principal"
	roleStateKey = "role_state"
)

// Auth validates the bearer JWT and stores the settled principal in context.
// Route groups that allow anonymous access are simply not wrapped by it.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sub, _ := claims.GetSubject()
			if sub == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing subject")
			}
			provider, _ := claims["provider"].(bool)

			c.Set(principalKey, domain.Principal{
				ID:                  sub,
				ProviderFlagClaimed: provider,
				Loaded:              true,
			})
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by Auth. Without Auth the
// principal is settled and anonymous.
func PrincipalFrom(c echo.Context) domain.Principal {
	if p, ok := c.Get(principalKey).(domain.Principal); ok {
		return p
	}
	return domain.Principal{Loaded: true}
}

// RoleStateFrom returns the state resolved by Guard, if it ran.
func RoleStateFrom(c echo.Context) (domain.RoleState, bool) {
	st, ok := c.Get(roleStateKey).(domain.RoleState)
	return st, ok
}

// ActorFrom builds the engine actor for the current request.
func ActorFrom(c echo.Context) domain.Actor {
	if st, ok := RoleStateFrom(c); ok {
		return domain.ActorFrom(st)
	}
	return domain.Actor{UserID: PrincipalFrom(c).ID}
}
