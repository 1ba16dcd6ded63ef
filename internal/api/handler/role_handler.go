package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/api/middleware"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

type roleResponse struct {
	UserID             string             `json:"user_id"`
	Phase              string             `json:"phase"`
	Role               string             `json:"role"`
	HasClientProfile   bool               `json:"has_client_profile"`
	HasProviderProfile bool               `json:"has_provider_profile"`
	Verdict            domain.RoleVerdict `json:"verdict"`
}

// RoleHandler reports the caller's resolved role and drops it on sign-out.
type RoleHandler struct {
	roles ports.RoleService
}

func NewRoleHandler(roles ports.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// Me handles GET /v1/me/role.
//
// @Summary      Resolve the caller's role
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=roleResponse}
// @Failure      401  {object}  Envelope
// @Failure      503  {object}  Envelope
// @Router       /v1/me/role [get]
func (h *RoleHandler) Me(c echo.Context) error {
	state, ok := middleware.RoleStateFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	resp := roleResponse{
		UserID:  state.Principal.ID,
		Phase:   state.Phase.String(),
		Role:    string(domain.RoleNone),
		Verdict: state.Verdict,
	}
	if rec := state.Record; rec != nil {
		resp.Role = string(rec.Role)
		resp.HasClientProfile = rec.HasClientProfile
		resp.HasProviderProfile = rec.HasProviderProfile
	}
	return respond(c, http.StatusOK, resp)
}

// Logout handles POST /v1/auth/logout. The bearer token stays valid until it
// expires; only the cached role data is discarded.
//
// @Summary      Sign out
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  Envelope
// @Router       /v1/auth/logout [post]
func (h *RoleHandler) Logout(c echo.Context) error {
	p := middleware.PrincipalFrom(c)
	if p.ID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	h.roles.Forget(p.ID)
	return c.NoContent(http.StatusNoContent)
}
