package service

import "github.com/handyfix/marketplace-engine/internal/core/domain"

// Authorize decides whether a caller in state may use a resource requiring
// capability. It never grants or redirects while the verdict is unsettled,
// and it fails closed on lookup errors.
func Authorize(state domain.RoleState, capability domain.Capability) domain.Decision {
	if !state.Principal.Loaded {
		return domain.Await()
	}

	switch state.Phase {
	case domain.RolePhaseIdle, domain.RolePhasePending:
		return domain.Await()
	case domain.RolePhaseFailed:
		return domain.Deny(domain.RedirectLogin)
	case domain.RolePhaseResolved:
	default:
		return domain.Deny(domain.RedirectLogin)
	}

	v := state.Verdict
	if !v.IsAuthenticated {
		return domain.Deny(domain.RedirectLogin)
	}
	if capability == domain.CapabilityAuthenticated {
		return domain.Allow()
	}
	if !v.IsVerified {
		return domain.Deny(domain.RedirectLogin)
	}

	switch capability {
	case domain.CapabilityClient:
		if v.IsClient {
			return domain.Allow()
		}
		return domain.Deny(domain.RedirectOnboarding)
	case domain.CapabilityProvider:
		if v.IsProvider {
			return domain.Allow()
		}
		if v.IsClient {
			return domain.Deny(domain.RedirectClientHome)
		}
		return domain.Deny(domain.RedirectOnboarding)
	default:
		return domain.Deny(domain.RedirectLogin)
	}
}
