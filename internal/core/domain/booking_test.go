package domain

import (
	"errors"
	"testing"
)

var allStatuses = []BookingStatus{StatusPending, StatusAccepted, StatusRejected, StatusPaid, StatusDone, StatusCompleted}

func TestEdges_MatchNextActions(t *testing.T) {
	for _, from := range allStatuses {
		for _, a := range from.NextActions() {
			edge, err := EdgeFor(a)
			if err != nil {
				t.Fatalf("EdgeFor(%s): %v", a, err)
			}
			if edge.From != from {
				t.Errorf("%s lists %s, but the edge starts at %s", from, a, edge.From)
			}
		}
	}
}

func TestEdgeFor(t *testing.T) {
	tests := []struct {
		action   Action
		from, to BookingStatus
		party    Party
	}{
		{ActionAccept, StatusPending, StatusAccepted, PartyProvider},
		{ActionReject, StatusPending, StatusRejected, PartyProvider},
		{ActionPay, StatusAccepted, StatusPaid, PartySystem},
		{ActionMarkDone, StatusPaid, StatusDone, PartyProvider},
		{ActionComplete, StatusDone, StatusCompleted, PartyClient},
	}
	for _, tt := range tests {
		edge, err := EdgeFor(tt.action)
		if err != nil {
			t.Fatalf("EdgeFor(%s): %v", tt.action, err)
		}
		if edge.From != tt.from || edge.To != tt.to || edge.Party != tt.party {
			t.Errorf("EdgeFor(%s) = %+v", tt.action, edge)
		}
	}

	for _, a := range []Action{ActionCreate, "cancel", ""} {
		if _, err := EdgeFor(a); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("EdgeFor(%q): expected ErrInvalidTransition, got %v", a, err)
		}
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusRejected || s == StatusCompleted
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestBookingStatus_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for an unknown status")
		}
	}()
	BookingStatus("shipped").NextActions()
}

func TestParseBookingStatus(t *testing.T) {
	for _, s := range allStatuses {
		if got, err := ParseBookingStatus(string(s)); err != nil || got != s {
			t.Errorf("ParseBookingStatus(%s) = %s, %v", s, got, err)
		}
	}
	if _, err := ParseBookingStatus("PAID"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBooking_HasApplied(t *testing.T) {
	fee := int64(5000)
	b := &Booking{
		Status:   StatusAccepted,
		FeeCents: &fee,
		StatusHistory: []StatusHistoryEntry{
			{Status: StatusPending, Action: ActionCreate},
			{Status: StatusAccepted, Action: ActionAccept, AmountCents: &fee},
		},
	}

	same, other := int64(5000), int64(6000)
	if !b.HasApplied(ActionAccept, &same) {
		t.Error("same fee should be a replay")
	}
	if b.HasApplied(ActionAccept, &other) {
		t.Error("different fee is not a replay")
	}
	if b.HasApplied(ActionAccept, nil) {
		t.Error("missing fee is not a replay")
	}
	if b.HasApplied(ActionReject, nil) {
		t.Error("reject never ran")
	}
}

func TestBooking_Apply(t *testing.T) {
	b := &Booking{Status: StatusPending}
	fee := int64(100)
	b.Apply(StatusChange{From: StatusPending, To: StatusAccepted, FeeCents: &fee, Entry: StatusHistoryEntry{Status: StatusAccepted, Action: ActionAccept}})

	fee = 999
	if b.Status != StatusAccepted || b.FeeCents == nil || *b.FeeCents != 100 {
		t.Errorf("unexpected booking after apply: %+v", b)
	}
	if len(b.StatusHistory) != 1 {
		t.Errorf("expected history entry, got %d", len(b.StatusHistory))
	}
}
