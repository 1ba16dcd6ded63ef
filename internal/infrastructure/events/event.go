package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the engine.
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypePaymentRecorded      = "payment.recorded"
)

const source = "marketplace-engine"

// Event is the envelope for every message written to the event topic.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType, aggregateID, aggregateType string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
	}, nil
}

// BookingStatusChangedData is the payload of booking events. From is empty
// for a newly created booking.
type BookingStatusChangedData struct {
	BookingID  string `json:"booking_id"`
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	From       string `json:"from,omitempty"`
	To         string `json:"to"`
	FeeCents   *int64 `json:"fee_cents,omitempty"`
	Currency   string `json:"currency"`
}

// PaymentRecordedData is the payload of payment.recorded.
type PaymentRecordedData struct {
	BookingID        string `json:"booking_id"`
	GatewaySessionID string `json:"gateway_session_id"`
	AmountCents      int64  `json:"amount_cents"`
	Currency         string `json:"currency"`
	Source           string `json:"source"`
}

// Marshal serializes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
