package domain

import "time"

// PaymentStatus of a recorded payment. Only settled charges are recorded.
type PaymentStatus string

const PaymentStatusSucceeded PaymentStatus = "succeeded"

// PaymentSource records which path produced a payment record.
type PaymentSource string

const (
	PaymentSourceWebhook   PaymentSource = "webhook"
	PaymentSourceConfirm   PaymentSource = "confirm"
	PaymentSourceReconcile PaymentSource = "reconcile"
)

// PaymentMetadata travels with the gateway session for receipts.
type PaymentMetadata struct {
	ServiceName  string `json:"service_name" bson:"service_name"`
	ProviderName string `json:"provider_name" bson:"provider_name"`
}

// PaymentRecord is keyed by booking: at most one per booking.
type PaymentRecord struct {
	BookingID        string          `json:"booking_id" bson:"_id"`
	GatewaySessionID string          `json:"gateway_session_id" bson:"gateway_session_id"`
	AmountCents      int64           `json:"amount_cents" bson:"amount_cents"`
	Currency         string          `json:"currency" bson:"currency"`
	Status           PaymentStatus   `json:"status" bson:"status"`
	Source           PaymentSource   `json:"source" bson:"source"`
	Metadata         PaymentMetadata `json:"metadata" bson:"metadata"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at"`
}

// CheckoutSession is the gateway reference a client is redirected to.
type CheckoutSession struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// SessionStatus is the gateway's authoritative view of a checkout session.
type SessionStatus struct {
	SessionID   string
	BookingID   string
	Paid        bool
	AmountCents int64
	Currency    string
	Metadata    PaymentMetadata
}
