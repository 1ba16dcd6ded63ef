package ports

import (
	"context"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// ListBookingsFilter carries all query parameters for listing bookings.
// Exactly one of ClientID or ProviderID is set by the service layer.
type ListBookingsFilter struct {
	ClientID   string
	ProviderID string
	Status     domain.BookingStatus // optional
	Page       int                  // 1-based
	Limit      int
}

// BookingRepository defines persistence operations for bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	FindByIdempotencyKey(ctx context.Context, clientID, key string) (*domain.Booking, error)
	// List returns a page of bookings matching filter and the total count.
	List(ctx context.Context, filter ListBookingsFilter) ([]*domain.Booking, int64, error)
	// UpdateStatus commits change only while the stored status equals
	// change.From. It returns domain.ErrConflict when the status moved and
	// domain.ErrBookingNotFound when the booking does not exist.
	UpdateStatus(ctx context.Context, change domain.StatusChange) error
	// AttachCheckoutSession records the gateway session on an accepted booking.
	AttachCheckoutSession(ctx context.Context, bookingID, sessionID string) error
}

// ServiceCatalog resolves the services bookings are made against.
type ServiceCatalog interface {
	FindService(ctx context.Context, id string) (*domain.Service, error)
}

// ProfileStore is the durable source of client/provider profiles.
type ProfileStore interface {
	FindProfiles(ctx context.Context, userID string) (domain.ProfileSet, error)
	CreateProfile(ctx context.Context, role domain.Role, profile *domain.Profile) error
}

// EventPublisher emits domain events after state has been committed.
type EventPublisher interface {
	PublishBookingStatusChanged(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error
	PublishPaymentRecorded(ctx context.Context, rec *domain.PaymentRecord) error
}
