package domain

// Capability is what a role-scoped resource requires of its caller.
type Capability string

const (
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityClient        Capability = "client"
	CapabilityProvider      Capability = "provider"
)

// Outcome is the AccessGuard's answer.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeDeny
	// OutcomeAwaitVerdict asks the caller to hold off: neither grant nor redirect.
	OutcomeAwaitVerdict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomeAwaitVerdict:
		return "await"
	default:
		return "unknown"
	}
}

// Redirect tells a denied caller where to go.
type Redirect string

const (
	RedirectNone Redirect = ""
	// RedirectLogin is an authentication failure.
	RedirectLogin Redirect = "login"
	// RedirectClientHome is a scope mismatch for a signed-in client.
	RedirectClientHome Redirect = "client_home"
	// RedirectOnboarding is a scope mismatch for a user with no usable role yet.
	RedirectOnboarding Redirect = "onboarding"
)

// Decision pairs an outcome with its redirect target.
type Decision struct {
	Outcome  Outcome
	Redirect Redirect
}

func Allow() Decision { return Decision{Outcome: OutcomeAllow} }

func Await() Decision { return Decision{Outcome: OutcomeAwaitVerdict} }

func Deny(to Redirect) Decision { return Decision{Outcome: OutcomeDeny, Redirect: to} }

// Actor is whoever asks the engine to act: a resolved user or the system.
type Actor struct {
	UserID  string
	Verdict RoleVerdict
	System  bool
}

// SystemActor is used by the payment reconciler for gateway-driven edges.
func SystemActor() Actor { return Actor{UserID: "system", System: true} }

// ActorFrom builds an actor from a resolved role state.
func ActorFrom(state RoleState) Actor {
	return Actor{UserID: state.Principal.ID, Verdict: state.Verdict}
}
