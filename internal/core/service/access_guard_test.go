package service

import (
	"testing"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

func resolvedState(p domain.Principal, hasClient, hasProvider bool, policy domain.RolePolicy) domain.RoleState {
	rec := domain.NewRoleRecord(p.ID, hasClient, hasProvider)
	return domain.RoleState{
		Phase:     domain.RolePhaseResolved,
		Principal: p,
		Record:    &rec,
		Verdict:   policy.Derive(p, &rec),
	}
}

func TestAuthorize(t *testing.T) {
	signedIn := domain.Principal{ID: "u1", Loaded: true}
	claimsProvider := domain.Principal{ID: "u1", ProviderFlagClaimed: true, Loaded: true}
	strict := domain.RolePolicy{ImplicitClient: false}

	tests := []struct {
		name       string
		state      domain.RoleState
		capability domain.Capability
		want       domain.Decision
	}{
		{
			name:       "identity unsettled",
			state:      domain.RoleState{Phase: domain.RolePhaseResolved, Principal: domain.Principal{ID: "u1"}},
			capability: domain.CapabilityAuthenticated,
			want:       domain.Await(),
		},
		{
			name:       "idle",
			state:      domain.RoleState{Phase: domain.RolePhaseIdle, Principal: signedIn},
			capability: domain.CapabilityClient,
			want:       domain.Await(),
		},
		{
			name:       "pending never denies",
			state:      domain.RoleState{Phase: domain.RolePhasePending, Principal: claimsProvider},
			capability: domain.CapabilityProvider,
			want:       domain.Await(),
		},
		{
			name:       "failed is logged out",
			state:      domain.RoleState{Phase: domain.RolePhaseFailed, Principal: signedIn},
			capability: domain.CapabilityAuthenticated,
			want:       domain.Deny(domain.RedirectLogin),
		},
		{
			name:       "anonymous",
			state:      domain.RoleState{Phase: domain.RolePhaseResolved, Principal: domain.Principal{Loaded: true}},
			capability: domain.CapabilityClient,
			want:       domain.Deny(domain.RedirectLogin),
		},
		{
			name:       "authenticated only",
			state:      resolvedState(signedIn, false, false, domain.DefaultRolePolicy),
			capability: domain.CapabilityAuthenticated,
			want:       domain.Allow(),
		},
		{
			name:       "implicit client",
			state:      resolvedState(signedIn, false, false, domain.DefaultRolePolicy),
			capability: domain.CapabilityClient,
			want:       domain.Allow(),
		},
		{
			name:       "no client profile under strict policy",
			state:      resolvedState(signedIn, false, false, strict),
			capability: domain.CapabilityClient,
			want:       domain.Deny(domain.RedirectOnboarding),
		},
		{
			name:       "client asks for provider scope",
			state:      resolvedState(signedIn, true, false, domain.DefaultRolePolicy),
			capability: domain.CapabilityProvider,
			want:       domain.Deny(domain.RedirectClientHome),
		},
		{
			name:       "profile without claim",
			state:      resolvedState(signedIn, true, true, domain.DefaultRolePolicy),
			capability: domain.CapabilityProvider,
			want:       domain.Deny(domain.RedirectClientHome),
		},
		{
			name:       "nobody asks for provider scope under strict policy",
			state:      resolvedState(signedIn, false, false, strict),
			capability: domain.CapabilityProvider,
			want:       domain.Deny(domain.RedirectOnboarding),
		},
		{
			name:       "provider",
			state:      resolvedState(claimsProvider, false, true, strict),
			capability: domain.CapabilityProvider,
			want:       domain.Allow(),
		},
		{
			name:       "provider implies client",
			state:      resolvedState(claimsProvider, false, true, strict),
			capability: domain.CapabilityClient,
			want:       domain.Allow(),
		},
		{
			name: "record for another user",
			state: func() domain.RoleState {
				st := resolvedState(signedIn, true, true, domain.DefaultRolePolicy)
				rec := domain.NewRoleRecord("u2", true, true)
				st.Record = &rec
				st.Verdict = domain.DefaultRolePolicy.Derive(signedIn, &rec)
				return st
			}(),
			capability: domain.CapabilityClient,
			want:       domain.Deny(domain.RedirectLogin),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Authorize(tt.state, tt.capability)
			if got != tt.want {
				t.Errorf("Authorize() = %s/%q, want %s/%q", got.Outcome, got.Redirect, tt.want.Outcome, tt.want.Redirect)
			}
		})
	}
}
