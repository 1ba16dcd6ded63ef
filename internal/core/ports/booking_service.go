package ports

import (
	"context"
	"iter"
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// CoordinatesInput holds geographic coordinates.
type CoordinatesInput struct {
	Lat float64
	Lng float64
}

// LocationInput holds the job address.
type LocationInput struct {
	Address     string
	Coordinates *CoordinatesInput
}

// CreateBookingInput carries all data needed to request a service.
type CreateBookingInput struct {
	Actor          domain.Actor
	ProviderID     string
	ServiceID      string
	Description    string
	Location       LocationInput
	ScheduledTime  time.Time
	IdempotencyKey string
}

// CreateBookingResult is returned after a booking request.
type CreateBookingResult struct {
	Booking *domain.Booking
	// AlreadyExisted is true when the Idempotency-Key matched an existing booking.
	AlreadyExisted bool
}

// TransitionInput drives one lifecycle edge. AmountCents is the fee for
// accept and the charged amount for pay; other actions ignore it. FeeErr is a
// fee the caller sent but that could not be parsed; it is reported only after
// the actor is authorized for the edge.
type TransitionInput struct {
	BookingID   string
	Action      domain.Action
	Actor       domain.Actor
	AmountCents *int64
	FeeErr      error
}

// TransitionResult reports the booking after the call. Applied is false when
// the request replayed an edge that had already been taken.
type TransitionResult struct {
	Booking *domain.Booking
	From    domain.BookingStatus
	Applied bool
}

// ListBookingsInput carries all parameters for the list endpoint.
type ListBookingsInput struct {
	Actor  domain.Actor
	Role   domain.Role
	Status string
	Page   int
	Limit  int
}

// ListBookingsResult is returned by ListBookingsForUser.
type ListBookingsResult struct {
	Items      []*domain.Booking
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// BookingService is the booking state machine.
type BookingService interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error)
	GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error)
	ListBookingsForUser(ctx context.Context, input ListBookingsInput) (*ListBookingsResult, error)
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
}

// PaymentService reconciles bookings with the payment gateway.
type PaymentService interface {
	InitiateCheckout(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error)
	Confirm(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error)
	ReconcileMissing(ctx context.Context, bookingID, sessionID string, actor domain.Actor) (*domain.PaymentRecord, error)
	ConfirmFromWebhook(ctx context.Context, bookingID, sessionID string) (*domain.PaymentRecord, error)
}

// RoleService resolves a principal into a role state. Forget drops whatever
// was cached for the user when they sign out.
type RoleService interface {
	Resolve(ctx context.Context, principal domain.Principal) domain.RoleState
	Forget(userID string)
}

// ThreadDigest is the recent-threads view: a capped, lazily joined sequence
// plus the full count for "view all". Ranging over Threads again re-runs the
// query.
type ThreadDigest struct {
	Total   int64
	Limit   int
	Threads iter.Seq2[domain.ChatThreadSummary, error]
}

// ChatService aggregates chat thread metadata onto bookings.
type ChatService interface {
	RecentThreads(ctx context.Context, userID string, role domain.Role) (*ThreadDigest, error)
}

// ChatThreadRepository reads thread metadata owned by the chat transport.
type ChatThreadRepository interface {
	// RecentForUser returns up to limit threads where userID is on the given
	// side, newest message first.
	RecentForUser(ctx context.Context, userID string, role domain.Role, limit int) ([]domain.ChatThread, error)
	CountForUser(ctx context.Context, userID string, role domain.Role) (int64, error)
}
