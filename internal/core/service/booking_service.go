package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// BookingService owns bookings and every legal status transition.
type BookingService struct {
	repo     ports.BookingRepository
	catalog  ports.ServiceCatalog
	profiles ports.ProfileStore
	events   ports.EventPublisher
	currency string
	now      func() time.Time
	logger   zerolog.Logger
}

func NewBookingService(
	repo ports.BookingRepository,
	catalog ports.ServiceCatalog,
	profiles ports.ProfileStore,
	events ports.EventPublisher,
	currency string,
	logger zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		catalog:  catalog,
		profiles: profiles,
		events:   events,
		currency: strings.ToLower(currency),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// CreateBooking records a client's service request in the pending state. If
// an idempotency key is provided and already seen for this client, the
// existing booking is returned without side effects.
func (s *BookingService) CreateBooking(ctx context.Context, input ports.CreateBookingInput) (*ports.CreateBookingResult, error) {
	actor := input.Actor
	if !actor.Verdict.IsClient || actor.UserID == "" {
		return nil, fmt.Errorf("create booking: %w", domain.ErrUnauthorized)
	}

	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, actor.UserID, input.IdempotencyKey)
		if err == nil && existing != nil {
			s.logger.Info().Str("idempotency_key", input.IdempotencyKey).Str("booking_id", existing.ID).Msg("idempotent replay")
			return &ports.CreateBookingResult{Booking: existing, AlreadyExisted: true}, nil
		}
	}

	if input.ProviderID == actor.UserID {
		return nil, fmt.Errorf("create booking: %w: cannot book yourself", domain.ErrInvalidInput)
	}
	if input.ScheduledTime.IsZero() {
		return nil, fmt.Errorf("create booking: %w: scheduled time is required", domain.ErrInvalidInput)
	}

	svc, err := s.catalog.FindService(ctx, input.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if !svc.Active {
		return nil, fmt.Errorf("create booking: %w: service %s is not offered", domain.ErrInvalidInput, svc.ID)
	}

	providerProfiles, err := s.profiles.FindProfiles(ctx, input.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("create booking: provider lookup: %w", err)
	}
	if providerProfiles.Provider == nil {
		return nil, fmt.Errorf("create booking: %w: %s is not a provider", domain.ErrInvalidInput, input.ProviderID)
	}

	now := s.now()
	booking := &domain.Booking{
		ID:             uuid.NewString(),
		ClientID:       actor.UserID,
		ProviderID:     input.ProviderID,
		ServiceID:      svc.ID,
		Description:    input.Description,
		Location:       toLocation(input.Location),
		ScheduledTime:  input.ScheduledTime.UTC(),
		Currency:       s.currency,
		Status:         domain.StatusPending,
		IdempotencyKey: input.IdempotencyKey,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.StatusPending,
			Action:    domain.ActionCreate,
			ActorID:   actor.UserID,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.logger.Error().Err(err).Msg("failed to create booking")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("client_id", booking.ClientID).Str("provider_id", booking.ProviderID).Msg("booking created")
	s.publishStatusChange(ctx, booking, "")

	return &ports.CreateBookingResult{Booking: booking}, nil
}

// GetBooking returns a booking visible to actor. Bookings the actor is not a
// party to are reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !canView(b, actor) {
		return nil, fmt.Errorf("get booking: %w", domain.ErrBookingNotFound)
	}
	return b, nil
}

// ListBookingsForUser returns the actor's bookings on the requested side.
func (s *BookingService) ListBookingsForUser(ctx context.Context, input ports.ListBookingsInput) (*ports.ListBookingsResult, error) {
	filter := ports.ListBookingsFilter{}
	switch input.Role {
	case domain.RoleClient:
		if !input.Actor.Verdict.IsClient {
			return nil, fmt.Errorf("list bookings: %w", domain.ErrUnauthorized)
		}
		filter.ClientID = input.Actor.UserID
	case domain.RoleProvider:
		if !input.Actor.Verdict.IsProvider {
			return nil, fmt.Errorf("list bookings: %w", domain.ErrUnauthorized)
		}
		filter.ProviderID = input.Actor.UserID
	default:
		return nil, fmt.Errorf("list bookings: %w: role must be client or provider", domain.ErrInvalidInput)
	}

	if input.Status != "" {
		st, err := domain.ParseBookingStatus(input.Status)
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		filter.Status = st
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	page := input.Page
	if page <= 0 {
		page = 1
	}
	filter.Page, filter.Limit = page, limit

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &ports.ListBookingsResult{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// Transition drives one lifecycle edge. Resubmitting an edge that already ran
// with the same arguments returns the current booking with Applied false.
func (s *BookingService) Transition(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
	res, err := s.apply(ctx, input)
	if err != nil {
		return nil, err
	}
	if res.Applied {
		s.publishStatusChange(ctx, res.Booking, res.From)
	}
	return res, nil
}

// apply is Transition without event publication, so callers running inside
// a transaction can publish after commit.
func (s *BookingService) apply(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
	edge, err := domain.EdgeFor(input.Action)
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	b, err := s.repo.FindByID(ctx, input.BookingID)
	if err != nil {
		return nil, fmt.Errorf("transition %s: %w", edge.Action, err)
	}

	if !authorizedFor(edge, b, input.Actor) {
		return nil, fmt.Errorf("transition %s: %w", edge.Action, domain.ErrUnauthorized)
	}

	if edge.Action == domain.ActionAccept && input.FeeErr != nil {
		return nil, fmt.Errorf("transition %s: %w", edge.Action, input.FeeErr)
	}
	if edge.Action == domain.ActionAccept && (input.AmountCents == nil || *input.AmountCents <= 0) {
		return nil, fmt.Errorf("transition %s: %w", edge.Action, domain.ErrInvalidFee)
	}

	if b.HasApplied(edge.Action, input.AmountCents) {
		s.logger.Debug().Str("booking_id", b.ID).Str("action", string(edge.Action)).Msg("transition replay")
		return &ports.TransitionResult{Booking: b, From: b.Status}, nil
	}

	if b.Status != edge.From {
		if edge.Action == domain.ActionAccept && b.Status == domain.StatusAccepted {
			return nil, fmt.Errorf("transition %s: %w: already accepted with a different fee", edge.Action, domain.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("transition %s: %w: booking is %s", edge.Action, domain.ErrInvalidTransition, b.Status)
	}

	change := domain.StatusChange{
		BookingID: b.ID,
		From:      edge.From,
		To:        edge.To,
		Entry: domain.StatusHistoryEntry{
			Status:    edge.To,
			Action:    edge.Action,
			ActorID:   input.Actor.UserID,
			Timestamp: s.now(),
		},
	}
	switch edge.Action {
	case domain.ActionAccept:
		fee := *input.AmountCents
		change.FeeCents = &fee
		change.Entry.AmountCents = &fee
	case domain.ActionPay:
		if input.AmountCents == nil || b.FeeCents == nil || *input.AmountCents != *b.FeeCents {
			return nil, fmt.Errorf("transition %s: %w", edge.Action, domain.ErrAmountMismatch)
		}
		paid := *input.AmountCents
		change.Entry.AmountCents = &paid
	}

	if err := s.repo.UpdateStatus(ctx, change); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// The winner may have been an identical request.
			if fresh, ferr := s.repo.FindByID(ctx, b.ID); ferr == nil && fresh.HasApplied(edge.Action, input.AmountCents) {
				return &ports.TransitionResult{Booking: fresh, From: fresh.Status}, nil
			}
			s.logger.Info().Str("booking_id", b.ID).Str("action", string(edge.Action)).Msg("transition lost race")
		}
		return nil, fmt.Errorf("transition %s: %w", edge.Action, err)
	}

	b.Apply(change)
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("action", string(edge.Action)).
		Str("from", string(edge.From)).
		Str("to", string(edge.To)).
		Msg("booking transitioned")

	return &ports.TransitionResult{Booking: b, From: edge.From, Applied: true}, nil
}

func (s *BookingService) publishStatusChange(ctx context.Context, b *domain.Booking, from domain.BookingStatus) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingStatusChanged(ctx, b, from); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("failed to publish booking event")
	}
}

// authorizedFor checks both the role capability and that the actor is the
// booking's own party for the edge.
func authorizedFor(edge domain.Edge, b *domain.Booking, actor domain.Actor) bool {
	switch edge.Party {
	case domain.PartySystem:
		return actor.System
	case domain.PartyProvider:
		return !actor.System && actor.Verdict.IsProvider && b.PartyOf(actor.UserID, domain.PartyProvider)
	case domain.PartyClient:
		return !actor.System && actor.Verdict.IsClient && b.PartyOf(actor.UserID, domain.PartyClient)
	default:
		return false
	}
}

func canView(b *domain.Booking, actor domain.Actor) bool {
	if actor.System {
		return true
	}
	if actor.Verdict.IsClient && b.PartyOf(actor.UserID, domain.PartyClient) {
		return true
	}
	return actor.Verdict.IsProvider && b.PartyOf(actor.UserID, domain.PartyProvider)
}

func toLocation(in ports.LocationInput) domain.Location {
	loc := domain.Location{Address: in.Address}
	if in.Coordinates != nil {
		loc.Coordinates = &domain.Coordinates{Lat: in.Coordinates.Lat, Lng: in.Coordinates.Lng}
	}
	return loc
}
