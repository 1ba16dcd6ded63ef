package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const (
	sandboxSessionPrefix = "cs_sandbox_"
	sandboxSessionTTL    = 24 * time.Hour
)

type sandboxSession struct {
	status    domain.SessionStatus
	expiresAt time.Time
}

// Sandbox is an in-process gateway for development and tests. Sessions stay
// unpaid until MarkPaid is called.
type Sandbox struct {
	mu       sync.RWMutex
	sessions map[string]*sandboxSession
	baseURL  string
	now      func() time.Time
	log      zerolog.Logger
}

// NewSandbox returns an empty sandbox. baseURL prefixes the checkout links it
// hands out.
func NewSandbox(baseURL string, log zerolog.Logger) *Sandbox {
	return &Sandbox{
		sessions: make(map[string]*sandboxSession),
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		log:      log,
	}
}

// CreateCheckoutSession records an unpaid session for the booking.
func (s *Sandbox) CreateCheckoutSession(_ context.Context, req ports.CheckoutRequest) (*domain.CheckoutSession, error) {
	if req.BookingID == "" || req.AmountCents <= 0 {
		return nil, fmt.Errorf("sandbox: %w: booking and positive amount required", domain.ErrInvalidInput)
	}

	id := sandboxSessionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	expires := s.now().UTC().Add(sandboxSessionTTL)

	s.mu.Lock()
	s.sessions[id] = &sandboxSession{
		status: domain.SessionStatus{
			SessionID:   id,
			BookingID:   req.BookingID,
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
			Metadata:    req.Metadata,
		},
		expiresAt: expires,
	}
	s.mu.Unlock()

	s.log.Debug().Str("session_id", id).Str("booking_id", req.BookingID).Int64("amount_cents", req.AmountCents).Msg("sandbox checkout session created")

	return &domain.CheckoutSession{
		ID:        id,
		URL:       s.baseURL + "/checkout/" + id,
		ExpiresAt: expires,
	}, nil
}

// GetSessionStatus returns a copy of the session state.
func (s *Sandbox) GetSessionStatus(_ context.Context, sessionID string) (*domain.SessionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("sandbox: session %s: %w", sessionID, domain.ErrSessionMismatch)
	}
	status := sess.status
	return &status, nil
}

// MarkPaid simulates the client completing checkout. It returns the settled
// session so callers can emit the matching webhook.
func (s *Sandbox) MarkPaid(_ context.Context, sessionID string) (*domain.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("sandbox: session %s: %w", sessionID, domain.ErrSessionMismatch)
	}
	if s.now().After(sess.expiresAt) {
		return nil, fmt.Errorf("sandbox: session %s expired: %w", sessionID, domain.ErrPaymentIncomplete)
	}
	sess.status.Paid = true

	s.log.Info().Str("session_id", sessionID).Str("booking_id", sess.status.BookingID).Msg("sandbox session paid")

	status := sess.status
	return &status, nil
}
