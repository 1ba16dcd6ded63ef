package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// Audit outcomes recorded for each received gateway event.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// DedupChecker abstracts the idempotency store (Redis).
type DedupChecker interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type gatewayEventService struct {
	payments ports.PaymentService
	dedup    DedupChecker
	audit    ports.GatewayEventLog
	log      zerolog.Logger
}

// NewGatewayEventService returns a GatewayEventService implementation.
func NewGatewayEventService(
	payments ports.PaymentService,
	dedup DedupChecker,
	audit ports.GatewayEventLog,
	log zerolog.Logger,
) ports.GatewayEventService {
	return &gatewayEventService{
		payments: payments,
		dedup:    dedup,
		audit:    audit,
		log:      log,
	}
}

// Process settles the booking named by a completed checkout notification.
// Gateways redeliver, so events already handled are skipped, and an event is
// only marked once settlement succeeded.
func (s *gatewayEventService) Process(ctx context.Context, in ports.GatewayEventInput) error {
	event := &domain.GatewayEvent{
		ID:         in.EventID,
		Type:       in.Type,
		SessionID:  in.SessionID,
		BookingID:  in.BookingID,
		OccurredAt: in.OccurredAt,
	}

	// 1. Only completed checkouts move money.
	if in.Type != domain.GatewayEventCheckoutCompleted {
		s.log.Debug().Str("event_id", in.EventID).Str("type", in.Type).Msg("gateway event ignored")
		s.record(ctx, event, OutcomeIgnored)
		return nil
	}
	if in.BookingID == "" || in.SessionID == "" {
		s.record(ctx, event, OutcomeFailed)
		return fmt.Errorf("process gateway event: %w: booking and session are required", domain.ErrInvalidInput)
	}

	// 2. Idempotency check: duplicates are skipped silently.
	isDup, err := s.dedup.IsDuplicate(ctx, in.EventID)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", in.EventID).Msg("dedup check failed, processing anyway")
	} else if isDup {
		s.log.Debug().Str("event_id", in.EventID).Msg("duplicate event skipped")
		s.record(ctx, event, OutcomeDuplicate)
		return nil
	}

	// 3. Settle through the reconciler; it tolerates replays on its own.
	rec, err := s.payments.ConfirmFromWebhook(ctx, in.BookingID, in.SessionID)
	if err != nil {
		s.record(ctx, event, OutcomeFailed)
		return fmt.Errorf("process gateway event: %w", err)
	}

	// 4. Mark only after success so a failed event is retried on redelivery.
	if markErr := s.dedup.Mark(ctx, in.EventID); markErr != nil {
		s.log.Warn().Err(markErr).Str("event_id", in.EventID).Msg("failed to set dedup key")
	}
	s.record(ctx, event, OutcomeProcessed)

	s.log.Info().
		Str("event_id", in.EventID).
		Str("booking_id", rec.BookingID).
		Str("session_id", rec.GatewaySessionID).
		Msg("gateway event processed")

	return nil
}

// record writes the audit trail; failures are logged, never returned.
func (s *gatewayEventService) record(ctx context.Context, event *domain.GatewayEvent, outcome string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Insert(ctx, event, outcome); err != nil {
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to insert audit event")
	}
}
