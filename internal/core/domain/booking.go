package domain

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusAccepted  BookingStatus = "accepted"
	StatusRejected  BookingStatus = "rejected"
	StatusPaid      BookingStatus = "paid"
	StatusDone      BookingStatus = "done"
	StatusCompleted BookingStatus = "completed"
)

// ParseBookingStatus rejects anything outside the closed status set.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	switch st {
	case StatusPending, StatusAccepted, StatusRejected, StatusPaid, StatusDone, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, s)
	}
}

// Terminal reports whether no edge leaves s.
func (s BookingStatus) Terminal() bool {
	return len(s.NextActions()) == 0
}

// NextActions lists the actions whose edge starts at s.
func (s BookingStatus) NextActions() []Action {
	switch s {
	case StatusPending:
		return []Action{ActionAccept, ActionReject}
	case StatusAccepted:
		return []Action{ActionPay}
	case StatusPaid:
		return []Action{ActionMarkDone}
	case StatusDone:
		return []Action{ActionComplete}
	case StatusRejected, StatusCompleted:
		return nil
	default:
		panic(fmt.Sprintf("domain: unhandled booking status %q", s))
	}
}

// Action names one lifecycle edge.
type Action string

const (
	ActionCreate   Action = "create"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionPay      Action = "pay"
	ActionMarkDone Action = "mark_done"
	ActionComplete Action = "complete"
)

// Party is who may drive an edge.
type Party string

const (
	PartyClient   Party = "client"
	PartyProvider Party = "provider"
	PartySystem   Party = "system"
)

// Edge is a single legal transition.
type Edge struct {
	Action Action
	From   BookingStatus
	To     BookingStatus
	Party  Party
}

// EdgeFor returns the edge driven by a. Create is not an edge.
func EdgeFor(a Action) (Edge, error) {
	switch a {
	case ActionAccept:
		return Edge{Action: a, From: StatusPending, To: StatusAccepted, Party: PartyProvider}, nil
	case ActionReject:
		return Edge{Action: a, From: StatusPending, To: StatusRejected, Party: PartyProvider}, nil
	case ActionPay:
		return Edge{Action: a, From: StatusAccepted, To: StatusPaid, Party: PartySystem}, nil
	case ActionMarkDone:
		return Edge{Action: a, From: StatusPaid, To: StatusDone, Party: PartyProvider}, nil
	case ActionComplete:
		return Edge{Action: a, From: StatusDone, To: StatusCompleted, Party: PartyClient}, nil
	default:
		return Edge{}, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, a)
	}
}

// Coordinates represents a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Location is where the work happens.
type Location struct {
	Address     string       `json:"address" bson:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
}

// StatusHistoryEntry records a single transition on a booking.
type StatusHistoryEntry struct {
	Status      BookingStatus `json:"status" bson:"status"`
	Action      Action        `json:"action" bson:"action"`
	ActorID     string        `json:"actor_id" bson:"actor_id"`
	AmountCents *int64        `json:"amount_cents,omitempty" bson:"amount_cents,omitempty"`
	Timestamp   time.Time     `json:"timestamp" bson:"timestamp"`
}

// Booking is the core aggregate root.
type Booking struct {
	ID                string               `json:"id" bson:"_id"`
	ClientID          string               `json:"client_id" bson:"client_id"`
	ProviderID        string               `json:"provider_id" bson:"provider_id"`
	ServiceID         string               `json:"service_id" bson:"service_id"`
	Description       string               `json:"description" bson:"description"`
	Location          Location             `json:"location" bson:"location"`
	ScheduledTime     time.Time            `json:"scheduled_time" bson:"scheduled_time"`
	FeeCents          *int64               `json:"fee_cents,omitempty" bson:"fee_cents,omitempty"`
	Currency          string               `json:"currency" bson:"currency"`
	Status            BookingStatus        `json:"status" bson:"status"`
	CheckoutSessionID string               `json:"checkout_session_id,omitempty" bson:"checkout_session_id,omitempty"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	StatusHistory     []StatusHistoryEntry `json:"status_history" bson:"status_history"`
	CreatedAt         time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at" bson:"updated_at"`
}

// HasApplied reports whether action already ran on b with the same amount,
// which makes a resubmission a no-op.
func (b *Booking) HasApplied(action Action, amountCents *int64) bool {
	for _, h := range b.StatusHistory {
		if h.Action != action {
			continue
		}
		if action == ActionAccept {
			return amountCents != nil && b.FeeCents != nil && *b.FeeCents == *amountCents
		}
		return true
	}
	return false
}

// PartyOf reports which side of b the user is on for the given party.
func (b *Booking) PartyOf(userID string, p Party) bool {
	switch p {
	case PartyClient:
		return b.ClientID == userID
	case PartyProvider:
		return b.ProviderID == userID
	default:
		return false
	}
}

// StatusChange is a conditional status write: it commits only while the
// stored status still equals From.
type StatusChange struct {
	BookingID string
	From      BookingStatus
	To        BookingStatus
	FeeCents  *int64
	Entry     StatusHistoryEntry
}

// Apply mirrors a committed change onto an in-memory copy.
func (b *Booking) Apply(c StatusChange) {
	b.Status = c.To
	if c.FeeCents != nil {
		fee := *c.FeeCents
		b.FeeCents = &fee
	}
	b.StatusHistory = append(b.StatusHistory, c.Entry)
	b.UpdatedAt = c.Entry.Timestamp
}
