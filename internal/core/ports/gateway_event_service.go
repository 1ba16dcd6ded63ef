package ports

import (
	"context"
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// GatewayEventInput is the DTO passed from the webhook transport to
// GatewayEventService.
type GatewayEventInput struct {
	EventID    string
	Type       string
	SessionID  string
	BookingID  string
	OccurredAt time.Time
}

// GatewayEventService processes payment gateway notifications.
type GatewayEventService interface {
	Process(ctx context.Context, event GatewayEventInput) error
}

// GatewayEventLog is the audit trail of received gateway notifications.
type GatewayEventLog interface {
	Insert(ctx context.Context, event *domain.GatewayEvent, outcome string) error
}
