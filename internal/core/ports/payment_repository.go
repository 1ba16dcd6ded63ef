package ports

import (
	"context"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// PaymentRepository persists payment records keyed by booking id.
type PaymentRepository interface {
	FindByBookingID(ctx context.Context, bookingID string) (*domain.PaymentRecord, error)
	// Upsert inserts rec unless a record for rec.BookingID exists, in which
	// case the stored record is returned and created is false.
	Upsert(ctx context.Context, rec *domain.PaymentRecord) (stored *domain.PaymentRecord, created bool, err error)
}

// Transactor runs fn so that every repository write made with the ctx it
// receives commits together or not at all.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BookingLocker grants a single payment writer per booking. Acquire returns
// domain.ErrConflict when another writer holds the booking.
type BookingLocker interface {
	Acquire(ctx context.Context, bookingID string) (release func(), err error)
}

// CheckoutRequest asks the gateway for a hosted checkout session.
type CheckoutRequest struct {
	BookingID   string
	AmountCents int64
	Currency    string
	Description string
	Metadata    domain.PaymentMetadata
	SuccessURL  string
	CancelURL   string
}

// PaymentGateway is the external charge processor. Transient failures are
// reported as domain.ErrGatewayUnavailable.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*domain.CheckoutSession, error)
	GetSessionStatus(ctx context.Context, sessionID string) (*domain.SessionStatus, error)
}
