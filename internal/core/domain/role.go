package domain

// Role is the durable role label stored with a RoleRecord.
type Role string

const (
	RoleNone     Role = "none"
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// ParseRole accepts the two role scopes a caller may act in.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient:
		return RoleClient, true
	case RoleProvider:
		return RoleProvider, true
	default:
		return RoleNone, false
	}
}

// Principal is the identity-side view of an actor. The engine never mutates it.
type Principal struct {
	ID                  string
	ProviderFlagClaimed bool
	Loaded              bool
}

// Authenticated reports whether the identity layer settled on a signed-in user.
func (p Principal) Authenticated() bool {
	return p.Loaded && p.ID != ""
}

// RoleRecord is the result of one profile lookup. It is built whole or not at all.
type RoleRecord struct {
	UserID             string
	Role               Role
	HasClientProfile   bool
	HasProviderProfile bool
}

// NewRoleRecord builds a record from the two profile existence flags.
func NewRoleRecord(userID string, hasClient, hasProvider bool) RoleRecord {
	role := RoleNone
	switch {
	case hasProvider:
		role = RoleProvider
	case hasClient:
		role = RoleClient
	}
	return RoleRecord{
		UserID:             userID,
		Role:               role,
		HasClientProfile:   hasClient,
		HasProviderProfile: hasProvider,
	}
}

// RoleVerdict is the capability set derived for a principal at a point in time.
type RoleVerdict struct {
	IsClient        bool `json:"is_client"`
	IsProvider      bool `json:"is_provider"`
	IsAuthenticated bool `json:"is_authenticated"`
	IsVerified      bool `json:"is_verified"`
}

// ProviderAccess is the dual-source conjunction: the durable provider profile
// and the identity-side claim must both hold.
func ProviderAccess(hasProviderProfile, providerFlagClaimed bool) bool {
	return hasProviderProfile && providerFlagClaimed
}

// RolePolicy carries the product decisions that shape a verdict.
type RolePolicy struct {
	// ImplicitClient treats every authenticated principal as client-capable,
	// even without a client profile.
	ImplicitClient bool
}

// DefaultRolePolicy matches the marketplace's current behaviour.
var DefaultRolePolicy = RolePolicy{ImplicitClient: true}

// Derive computes the verdict for principal from rec. A record belonging to a
// different user, or no record at all, yields an unverified verdict with no
// capabilities beyond authentication.
func (p RolePolicy) Derive(principal Principal, rec *RoleRecord) RoleVerdict {
	if !principal.Authenticated() {
		return RoleVerdict{}
	}
	v := RoleVerdict{IsAuthenticated: true}
	if rec == nil || rec.UserID != principal.ID {
		return v
	}
	v.IsVerified = true
	v.IsProvider = ProviderAccess(rec.HasProviderProfile, principal.ProviderFlagClaimed)
	v.IsClient = rec.HasClientProfile || p.ImplicitClient || v.IsProvider
	return v
}

// RolePhase is the loading state of a role resolution.
type RolePhase int

const (
	// RolePhaseIdle means the identity layer has not settled; no lookup runs.
	RolePhaseIdle RolePhase = iota
	RolePhasePending
	RolePhaseResolved
	RolePhaseFailed
)

func (p RolePhase) String() string {
	switch p {
	case RolePhaseIdle:
		return "idle"
	case RolePhasePending:
		return "pending"
	case RolePhaseResolved:
		return "resolved"
	case RolePhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RoleState is what a resolver currently knows about a principal.
type RoleState struct {
	Phase     RolePhase
	Principal Principal
	Record    *RoleRecord
	Verdict   RoleVerdict
	Err       error
}
