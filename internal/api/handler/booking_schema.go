package handler

import "time"

// --- Request types ---

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type locationRequest struct {
	Address     string              `json:"address"     validate:"required"`
	Coordinates *coordinatesRequest `json:"coordinates" validate:"omitempty"`
}

type createBookingRequest struct {
	ProviderID    string          `json:"provider_id"    validate:"required"`
	ServiceID     string          `json:"service_id"     validate:"required"`
	Description   string          `json:"description"    validate:"max=2000"`
	Location      locationRequest `json:"location"       validate:"required"`
	ScheduledTime time.Time       `json:"scheduled_time" validate:"required"`
}

// transitionRequest drives one lifecycle edge. Fee is a decimal string in
// major units ("95.00") and is only read for accept.
type transitionRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject mark_done complete"`
	Fee    string `json:"fee"`
}

type reconcileRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// --- Response types ---
// Owned by the transport layer so the JSON contract does not follow domain
// struct changes.

type coordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type locationResponse struct {
	Address     string               `json:"address"`
	Coordinates *coordinatesResponse `json:"coordinates,omitempty"`
}

type statusHistoryItemResponse struct {
	Status    string    `json:"status"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	Amount    string    `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type bookingLinks struct {
	Self     string `json:"self"`
	Checkout string `json:"checkout,omitempty"`
}

type bookingResponse struct {
	ID                string                      `json:"id"`
	ClientID          string                      `json:"client_id"`
	ProviderID        string                      `json:"provider_id"`
	ServiceID         string                      `json:"service_id"`
	Description       string                      `json:"description"`
	Location          locationResponse            `json:"location"`
	ScheduledTime     time.Time                   `json:"scheduled_time"`
	Fee               string                      `json:"fee,omitempty"`
	FeeCents          *int64                      `json:"fee_cents,omitempty"`
	Currency          string                      `json:"currency"`
	Status            string                      `json:"status"`
	NextActions       []string                    `json:"next_actions"`
	CheckoutSessionID string                      `json:"checkout_session_id,omitempty"`
	StatusHistory     []statusHistoryItemResponse `json:"status_history,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
	Links             bookingLinks                `json:"_links"`
}

type transitionResponse struct {
	Booking bookingResponse `json:"booking"`
	From    string          `json:"from"`
	Applied bool            `json:"applied"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type listBookingsResponse struct {
	Items      []bookingResponse  `json:"items"`
	Pagination paginationResponse `json:"pagination"`
}

type checkoutResponse struct {
	SessionID string     `json:"session_id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type paymentResponse struct {
	BookingID        string    `json:"booking_id"`
	GatewaySessionID string    `json:"gateway_session_id"`
	Amount           string    `json:"amount"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	Source           string    `json:"source"`
	ServiceName      string    `json:"service_name"`
	ProviderName     string    `json:"provider_name"`
	CreatedAt        time.Time `json:"created_at"`
}
