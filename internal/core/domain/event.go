package domain

import "time"

// GatewayEventCheckoutCompleted is the only gateway event the engine acts on.
const GatewayEventCheckoutCompleted = "checkout.session.completed"

// GatewayEvent is a webhook notification received from the payment gateway.
// Delivery may be late, duplicated, or missing entirely.
type GatewayEvent struct {
	ID         string
	Type       string
	SessionID  string
	BookingID  string
	OccurredAt time.Time
}
