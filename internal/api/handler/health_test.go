package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

func TestHealthHandler_Readiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   string
	}{
		{"all healthy", map[string]Check{"mongo": ok, "redis": ok}, http.StatusOK, "ok"},
		{"redis down", map[string]Check{"mongo": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
		{"no checks", map[string]Check{}, http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			h := NewHealthHandler(tt.checks)

			c, rec := newJSONContext(e, http.MethodGet, "/health/ready", "")
			if err := h.Readiness(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Fatalf("expected %q, got %q", tt.wantBody, resp.Status)
			}
			for i := 1; i < len(resp.Dependencies); i++ {
				if resp.Dependencies[i-1].Name > resp.Dependencies[i].Name {
					t.Fatalf("dependencies not sorted: %+v", resp.Dependencies)
				}
			}
		})
	}
}

func TestRoleHandler_Me(t *testing.T) {
	e := newTestEcho()
	h := NewRoleHandler(&recordingRoles{})

	c, rec := newJSONContext(e, http.MethodGet, "/v1/me/role", "")
	rec0 := domain.NewRoleRecord("u1", true, true)
	c.Set("role_state", domain.RoleState{
		Phase:     domain.RolePhaseResolved,
		Principal: domain.Principal{ID: "u1", ProviderFlagClaimed: true, Loaded: true},
		Record:    &rec0,
		Verdict:   domain.RoleVerdict{IsClient: true, IsProvider: true, IsAuthenticated: true, IsVerified: true},
	})

	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decodeEnvelope(t, rec)
	if data["role"] != "provider" || data["phase"] != "resolved" {
		t.Fatalf("unexpected role payload: %+v", data)
	}
	verdict := data["verdict"].(map[string]any)
	if verdict["is_provider"] != true {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestRoleHandler_Me_WithoutGuard(t *testing.T) {
	e := newTestEcho()
	h := NewRoleHandler(&recordingRoles{})

	c, _ := newJSONContext(e, http.MethodGet, "/v1/me/role", "")
	expectHTTPError(t, h.Me(c), http.StatusUnauthorized)
}

type recordingRoles struct {
	forgotten []string
}

func (r *recordingRoles) Resolve(_ context.Context, p domain.Principal) domain.RoleState {
	return domain.RoleState{Phase: domain.RolePhaseResolved, Principal: p}
}

func (r *recordingRoles) Forget(userID string) {
	r.forgotten = append(r.forgotten, userID)
}

func TestRoleHandler_Logout(t *testing.T) {
	e := newTestEcho()
	roles := &recordingRoles{}
	h := NewRoleHandler(roles)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/auth/logout", "")
	signIn(c, "u1")
	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(roles.forgotten) != 1 || roles.forgotten[0] != "u1" {
		t.Fatalf("expected u1 forgotten, got %v", roles.forgotten)
	}
}

func TestRoleHandler_Logout_Anonymous(t *testing.T) {
	e := newTestEcho()
	roles := &recordingRoles{}
	h := NewRoleHandler(roles)

	c, _ := newJSONContext(e, http.MethodPost, "/v1/auth/logout", "")
	expectHTTPError(t, h.Logout(c), http.StatusUnauthorized)
	if len(roles.forgotten) != 0 {
		t.Fatalf("expected nothing forgotten, got %v", roles.forgotten)
	}
}
