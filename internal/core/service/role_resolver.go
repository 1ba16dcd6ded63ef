package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// RoleResolver combines the identity-side principal with the durable profile
// store into one role state.
type RoleResolver struct {
	profiles ports.ProfileStore
	policy   domain.RolePolicy
	log      zerolog.Logger
}

func NewRoleResolver(profiles ports.ProfileStore, policy domain.RolePolicy, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{profiles: profiles, policy: policy, log: log}
}

// Resolve performs a single lookup for p. An unsettled principal stays idle
// and an anonymous one resolves without touching the profile store.
func (r *RoleResolver) Resolve(ctx context.Context, p domain.Principal) domain.RoleState {
	if !p.Loaded {
		return domain.RoleState{Phase: domain.RolePhaseIdle, Principal: p}
	}
	if p.ID == "" {
		return domain.RoleState{Phase: domain.RolePhaseResolved, Principal: p}
	}

	set, err := r.profiles.FindProfiles(ctx, p.ID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", p.ID).Msg("role lookup failed")
		return domain.RoleState{
			Phase:     domain.RolePhaseFailed,
			Principal: p,
			Err:       fmt.Errorf("role lookup: %w", err),
		}
	}

	rec := domain.NewRoleRecord(p.ID, set.Client != nil, set.Provider != nil)
	return domain.RoleState{
		Phase:     domain.RolePhaseResolved,
		Principal: p,
		Record:    &rec,
		Verdict:   r.policy.Derive(p, &rec),
	}
}

// NewSession starts tracking one principal stream.
func (r *RoleResolver) NewSession() *RoleSession {
	return &RoleSession{
		resolver: r,
		state:    domain.RoleState{Phase: domain.RolePhaseIdle},
		changed:  make(chan struct{}),
	}
}

// RoleSession follows a principal as the identity layer updates it. Lookups
// are last-request-wins: a result that arrives after a newer principal was
// observed is dropped.
type RoleSession struct {
	resolver *RoleResolver

	mu      sync.Mutex
	gen     uint64
	last    domain.Principal
	state   domain.RoleState
	changed chan struct{}

	discarded atomic.Uint64
}

// Observe feeds the latest principal. A lookup starts when the id changes or
// Loaded becomes true. A superseded lookup keeps running; its result is
// discarded on arrival.
func (s *RoleSession) Observe(ctx context.Context, p domain.Principal) {
	s.mu.Lock()
	prev := s.last
	s.last = p

	if !p.Loaded {
		s.gen++
		s.setLocked(domain.RoleState{Phase: domain.RolePhaseIdle, Principal: p})
		s.mu.Unlock()
		return
	}

	if prev.Loaded && prev.ID == p.ID {
		// Same user: re-derive against the latest flag, no new lookup.
		st := s.state
		st.Principal = p
		if st.Phase == domain.RolePhaseResolved {
			st.Verdict = s.resolver.policy.Derive(p, st.Record)
		}
		s.setLocked(st)
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	s.setLocked(domain.RoleState{Phase: domain.RolePhasePending, Principal: p})
	s.mu.Unlock()

	lookupCtx := context.WithoutCancel(ctx)
	go func() {
		st := s.resolver.Resolve(lookupCtx, p)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			s.discarded.Add(1)
			s.resolver.log.Debug().Str("user_id", p.ID).Msg("stale role lookup discarded")
			return
		}
		// The flag may have changed while the lookup was in flight.
		st.Principal = s.last
		if st.Phase == domain.RolePhaseResolved {
			st.Verdict = s.resolver.policy.Derive(s.last, st.Record)
		}
		s.setLocked(st)
	}()
}

// Clear forgets the current principal, e.g. on sign-out.
func (s *RoleSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.last = domain.Principal{}
	s.setLocked(domain.RoleState{Phase: domain.RolePhaseIdle})
}

// State returns the current role state without blocking.
func (s *RoleSession) State() domain.RoleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the session leaves the pending phase or ctx is done.
func (s *RoleSession) Wait(ctx context.Context) (domain.RoleState, error) {
	for {
		s.mu.Lock()
		st, ch := s.state, s.changed
		s.mu.Unlock()
		if st.Phase != domain.RolePhasePending {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Discarded counts lookups whose results were dropped as stale.
func (s *RoleSession) Discarded() uint64 {
	return s.discarded.Load()
}

func (s *RoleSession) setLocked(st domain.RoleState) {
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}
