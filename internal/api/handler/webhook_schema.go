package handler

import (
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

type checkoutSessionObject struct {
	ID                string            `json:"id"                  validate:"required"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type gatewayEventData struct {
	Object checkoutSessionObject `json:"object" validate:"required"`
}

// gatewayEventRequest is the notification body posted by the gateway.
type gatewayEventRequest struct {
	ID      string           `json:"id"      validate:"required"`
	Type    string           `json:"type"    validate:"required"`
	Created int64            `json:"created"`
	Data    gatewayEventData `json:"data"    validate:"required"`
}

type acceptedResponse struct {
	EventID string `json:"event_id"`
	Message string `json:"message"`
}

type sandboxPayResponse struct {
	SessionID string `json:"session_id"`
	BookingID string `json:"booking_id"`
	Paid      bool   `json:"paid"`
	Delivered bool   `json:"delivered"`
}

// toGatewayEventInput maps the notification to the service DTO. The booking
// id comes from session metadata, falling back to the client reference.
func toGatewayEventInput(r gatewayEventRequest) ports.GatewayEventInput {
	obj := r.Data.Object
	bookingID := obj.Metadata["booking_id"]
	if bookingID == "" {
		bookingID = obj.ClientReferenceID
	}
	in := ports.GatewayEventInput{
		EventID:   r.ID,
		Type:      r.Type,
		SessionID: obj.ID,
		BookingID: bookingID,
	}
	if r.Created > 0 {
		in.OccurredAt = time.Unix(r.Created, 0).UTC()
	} else {
		in.OccurredAt = time.Now().UTC()
	}
	return in
}
