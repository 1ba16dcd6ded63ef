package service

import (
	"context"
	"sync"
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const (
	defaultRoleWait     = 2 * time.Second
	defaultRoleCacheTTL = time.Minute
)

// RoleSessions keeps one RoleSession per signed-in user. Concurrent requests
// of the same user share a lookup, and a newer principal supersedes the
// lookup of an older one.
type RoleSessions struct {
	resolver *RoleResolver
	wait     time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	sessions  map[string]*trackedSession
	lastSweep time.Time
}

type trackedSession struct {
	session *RoleSession
	started time.Time
}

// NewRoleSessions bounds each request's wait for a verdict by wait and
// refreshes a user's profiles after ttl.
func NewRoleSessions(resolver *RoleResolver, wait, ttl time.Duration) *RoleSessions {
	if wait <= 0 {
		wait = defaultRoleWait
	}
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}
	return &RoleSessions{
		resolver: resolver,
		wait:     wait,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*trackedSession),
	}
}

// Resolve observes p on the user's session and waits for the verdict. When
// the wait runs out the pending state is returned as is.
func (s *RoleSessions) Resolve(ctx context.Context, p domain.Principal) domain.RoleState {
	if !p.Loaded || p.ID == "" {
		return s.resolver.Resolve(ctx, p)
	}

	sess := s.session(p.ID)
	sess.Observe(ctx, p)

	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	st, err := sess.Wait(waitCtx)
	if err != nil {
		s.resolver.log.Debug().Str("user_id", p.ID).Msg("role verdict still pending")
		return st
	}
	if st.Phase == domain.RolePhaseFailed {
		// Retry the lookup on the next request.
		s.drop(p.ID, sess)
	}
	return st
}

// Forget discards the cached role data of userID, e.g. on sign-out.
func (s *RoleSessions) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.sessions[userID]; ok {
		t.session.Clear()
		delete(s.sessions, userID)
	}
}

func (s *RoleSessions) session(userID string) *RoleSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if t, ok := s.sessions[userID]; ok && now.Sub(t.started) < s.ttl {
		return t.session
	}
	if now.Sub(s.lastSweep) >= s.ttl {
		for id, t := range s.sessions {
			if now.Sub(t.started) >= s.ttl {
				delete(s.sessions, id)
			}
		}
		s.lastSweep = now
	}

	t := &trackedSession{session: s.resolver.NewSession(), started: now}
	s.sessions[userID] = t
	return t.session
}

func (s *RoleSessions) drop(userID string, sess *RoleSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.sessions[userID]; ok && t.session == sess {
		delete(s.sessions, userID)
	}
}
