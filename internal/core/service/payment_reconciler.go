package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// CheckoutURLs are the client redirect targets after the hosted checkout.
// "{booking_id}" is substituted per session.
type CheckoutURLs struct {
	Success string
	Cancel  string
}

// PaymentReconciler brings bookings into agreement with the gateway. A
// payment record and the accepted -> paid edge are written together or not
// at all, and only one writer per booking runs at a time.
type PaymentReconciler struct {
	bookings *BookingService
	payments ports.PaymentRepository
	gateway  ports.PaymentGateway
	tx       ports.Transactor
	locker   ports.BookingLocker
	urls     CheckoutURLs
	now      func() time.Time
	log      zerolog.Logger
}

func NewPaymentReconciler(
	bookings *BookingService,
	payments ports.PaymentRepository,
	gateway ports.PaymentGateway,
	tx ports.Transactor,
	locker ports.BookingLocker,
	urls CheckoutURLs,
	log zerolog.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{
		bookings: bookings,
		payments: payments,
		gateway:  gateway,
		tx:       tx,
		locker:   locker,
		urls:     urls,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// InitiateCheckout opens a gateway session for exactly the booking's fee and
// attaches it to the booking. A session that is already attached and paid is
// settled instead of being replaced.
func (r *PaymentReconciler) InitiateCheckout(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error) {
	b, err := r.bookings.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("initiate checkout: %w", err)
	}
	if actor.System || !actor.Verdict.IsClient || !b.PartyOf(actor.UserID, domain.PartyClient) {
		return nil, fmt.Errorf("initiate checkout: %w", domain.ErrUnauthorized)
	}
	if b.Status != domain.StatusAccepted || b.FeeCents == nil {
		return nil, fmt.Errorf("initiate checkout: %w: booking is %s", domain.ErrInvalidTransition, b.Status)
	}

	if b.CheckoutSessionID != "" {
		if err := r.settleAttached(ctx, b); err != nil {
			return nil, fmt.Errorf("initiate checkout: %w", err)
		}
	}

	meta := r.metadataFor(ctx, b)
	session, err := r.gateway.CreateCheckoutSession(ctx, ports.CheckoutRequest{
		BookingID:   b.ID,
		AmountCents: *b.FeeCents,
		Currency:    b.Currency,
		Description: meta.ServiceName,
		Metadata:    meta,
		SuccessURL:  expandBookingURL(r.urls.Success, b.ID),
		CancelURL:   expandBookingURL(r.urls.Cancel, b.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("initiate checkout: %w", err)
	}

	if err := r.bookings.repo.AttachCheckoutSession(ctx, b.ID, session.ID); err != nil {
		return nil, fmt.Errorf("initiate checkout: attach session: %w", err)
	}

	r.log.Info().Str("booking_id", b.ID).Str("session_id", session.ID).Int64("amount_cents", *b.FeeCents).Msg("checkout session created")
	return session, nil
}

// settleAttached checks the session already attached to b. A paid session is
// settled and reported as ErrInvalidTransition; an unpaid or unknown one may
// be replaced.
func (r *PaymentReconciler) settleAttached(ctx context.Context, b *domain.Booking) error {
	status, err := r.gateway.GetSessionStatus(ctx, b.CheckoutSessionID)
	switch {
	case errors.Is(err, domain.ErrSessionMismatch):
		return nil
	case err != nil:
		return fmt.Errorf("attached session: %w", err)
	case !status.Paid || status.BookingID != b.ID:
		return nil
	}

	if _, err := r.settle(ctx, b.ID, b.CheckoutSessionID, domain.PaymentSourceConfirm); err != nil {
		return err
	}
	return fmt.Errorf("%w: session %s is already paid", domain.ErrInvalidTransition, b.CheckoutSessionID)
}

// Confirm is the primary settlement path: it checks the session attached at
// checkout. Either party of the booking may ask.
func (r *PaymentReconciler) Confirm(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error) {
	b, err := r.bookings.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	if !canView(b, actor) {
		return nil, fmt.Errorf("confirm payment: %w", domain.ErrUnauthorized)
	}

	if existing, err := r.existing(ctx, b.ID); err != nil || existing != nil {
		return existing, err
	}
	if b.CheckoutSessionID == "" {
		return nil, fmt.Errorf("confirm payment: %w: no checkout session", domain.ErrPaymentIncomplete)
	}

	return r.settle(ctx, b.ID, b.CheckoutSessionID, domain.PaymentSourceConfirm)
}

// ReconcileMissing settles a booking from a client-supplied session id when
// the gateway notification never arrived.
func (r *PaymentReconciler) ReconcileMissing(ctx context.Context, bookingID, sessionID string, actor domain.Actor) (*domain.PaymentRecord, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("reconcile payment: %w: session id is required", domain.ErrInvalidInput)
	}

	b, err := r.bookings.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("reconcile payment: %w", err)
	}
	if actor.System || !actor.Verdict.IsClient || !b.PartyOf(actor.UserID, domain.PartyClient) {
		return nil, fmt.Errorf("reconcile payment: %w", domain.ErrUnauthorized)
	}

	existing, err := r.existing(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := r.sameBooking(ctx, existing, sessionID); err != nil {
			return nil, fmt.Errorf("reconcile payment: %w", err)
		}
		return existing, nil
	}

	return r.settle(ctx, b.ID, sessionID, domain.PaymentSourceReconcile)
}

// ConfirmFromWebhook settles on behalf of the gateway's own notification.
func (r *PaymentReconciler) ConfirmFromWebhook(ctx context.Context, bookingID, sessionID string) (*domain.PaymentRecord, error) {
	if existing, err := r.existing(ctx, bookingID); err != nil || existing != nil {
		return existing, err
	}
	return r.settle(ctx, bookingID, sessionID, domain.PaymentSourceWebhook)
}

// sameBooking accepts any session the gateway attributes to the booking of
// rec, not only the one that was recorded.
func (r *PaymentReconciler) sameBooking(ctx context.Context, rec *domain.PaymentRecord, sessionID string) error {
	if rec.GatewaySessionID == sessionID {
		return nil
	}
	status, err := r.gateway.GetSessionStatus(ctx, sessionID)
	if err != nil {
		return err
	}
	if status.BookingID != rec.BookingID {
		return domain.ErrSessionMismatch
	}
	return nil
}

func (r *PaymentReconciler) existing(ctx context.Context, bookingID string) (*domain.PaymentRecord, error) {
	rec, err := r.payments.FindByBookingID(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payment lookup: %w", err)
	}
	return rec, nil
}

// settle runs under the booking's payment lock. Once started it is not
// cancelled by the caller going away.
func (r *PaymentReconciler) settle(ctx context.Context, bookingID, sessionID string, source domain.PaymentSource) (*domain.PaymentRecord, error) {
	ctx = context.WithoutCancel(ctx)
	logger := r.log.With().Str("booking_id", bookingID).Str("session_id", sessionID).Str("source", string(source)).Logger()

	release, err := r.locker.Acquire(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	defer release()

	// Another writer may have finished while we waited for the lock.
	existing, err := r.existing(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if source == domain.PaymentSourceReconcile {
			if err := r.sameBooking(ctx, existing, sessionID); err != nil {
				return nil, fmt.Errorf("settle payment: %w", err)
			}
		}
		return existing, nil
	}

	status, err := r.gateway.GetSessionStatus(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	if status.BookingID != bookingID {
		logger.Warn().Str("session_booking_id", status.BookingID).Msg("session belongs to another booking")
		return nil, fmt.Errorf("settle payment: %w", domain.ErrSessionMismatch)
	}
	if !status.Paid {
		return nil, fmt.Errorf("settle payment: %w", domain.ErrPaymentIncomplete)
	}

	b, err := r.bookings.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	if b.Status != domain.StatusAccepted {
		return nil, fmt.Errorf("settle payment: %w: booking is %s", domain.ErrInvalidTransition, b.Status)
	}
	if b.FeeCents == nil || status.AmountCents != *b.FeeCents || !strings.EqualFold(status.Currency, b.Currency) {
		logger.Warn().Int64("paid_cents", status.AmountCents).Msg("paid amount differs from fee")
		return nil, fmt.Errorf("settle payment: %w", domain.ErrAmountMismatch)
	}

	rec := &domain.PaymentRecord{
		BookingID:        bookingID,
		GatewaySessionID: sessionID,
		AmountCents:      status.AmountCents,
		Currency:         strings.ToLower(status.Currency),
		Status:           domain.PaymentStatusSucceeded,
		Source:           source,
		Metadata:         status.Metadata,
		CreatedAt:        r.now(),
	}

	var (
		stored  *domain.PaymentRecord
		created bool
		moved   *ports.TransitionResult
	)
	err = r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		stored, created, err = r.payments.Upsert(txCtx, rec)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		amount := rec.AmountCents
		moved, err = r.bookings.apply(txCtx, ports.TransitionInput{
			BookingID:   bookingID,
			Action:      domain.ActionPay,
			Actor:       domain.SystemActor(),
			AmountCents: &amount,
		})
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("payment settlement rolled back")
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	if !created {
		return stored, nil
	}

	logger.Info().Int64("amount_cents", stored.AmountCents).Msg("payment recorded")
	if r.bookings.events != nil {
		if moved != nil && moved.Applied {
			r.bookings.publishStatusChange(ctx, moved.Booking, moved.From)
		}
		if err := r.bookings.events.PublishPaymentRecorded(ctx, stored); err != nil {
			logger.Warn().Err(err).Msg("failed to publish payment event")
		}
	}
	return stored, nil
}

func (r *PaymentReconciler) metadataFor(ctx context.Context, b *domain.Booking) domain.PaymentMetadata {
	var meta domain.PaymentMetadata
	if svc, err := r.bookings.catalog.FindService(ctx, b.ServiceID); err == nil {
		meta.ServiceName = svc.Name
	}
	if set, err := r.bookings.profiles.FindProfiles(ctx, b.ProviderID); err == nil {
		meta.ProviderName = set.DisplayName(domain.RoleProvider)
	}
	return meta
}

func expandBookingURL(tmpl, bookingID string) string {
	return strings.ReplaceAll(tmpl, "{booking_id}", bookingID)
}
