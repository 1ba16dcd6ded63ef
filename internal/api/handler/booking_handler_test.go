package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

type stubBookingService struct {
	createFn     func(ctx context.Context, input ports.CreateBookingInput) (*ports.CreateBookingResult, error)
	getFn        func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error)
	listFn       func(ctx context.Context, input ports.ListBookingsInput) (*ports.ListBookingsResult, error)
	transitionFn func(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error)
}

func (s *stubBookingService) CreateBooking(ctx context.Context, input ports.CreateBookingInput) (*ports.CreateBookingResult, error) {
	return s.createFn(ctx, input)
}

func (s *stubBookingService) GetBooking(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
	return s.getFn(ctx, bookingID, actor)
}

func (s *stubBookingService) ListBookingsForUser(ctx context.Context, input ports.ListBookingsInput) (*ports.ListBookingsResult, error) {
	return s.listFn(ctx, input)
}

func (s *stubBookingService) Transition(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
	return s.transitionFn(ctx, input)
}

// signIn stores the principal the Auth middleware would have set.
func signIn(c echo.Context, userID string) {
	c.Set("principal", domain.Principal{ID: userID, Loaded: true})
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:            "bk_1",
		ClientID:      "client_1",
		ProviderID:    "provider_1",
		ServiceID:     "svc_plumbing",
		Description:   "Leaking sink",
		Location:      domain.Location{Address: "1 Main St"},
		ScheduledTime: now.Add(48 * time.Hour),
		Currency:      "usd",
		Status:        status,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.StatusPending, Action: domain.ActionCreate, ActorID: "client_1", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

const createBody = `{
	"provider_id": "provider_1",
	"service_id": "svc_plumbing",
	"description": "Leaking sink",
	"location": {"address": "1 Main St", "coordinates": {"lat": 19.43, "lng": -99.13}},
	"scheduled_time": "2026-03-03T09:00:00Z"
}`

func TestBookingHandler_Create_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		createFn: func(ctx context.Context, input ports.CreateBookingInput) (*ports.CreateBookingResult, error) {
			if input.Actor.UserID != "client_1" || input.ProviderID != "provider_1" {
				t.Fatalf("unexpected input: %+v", input)
			}
			if input.IdempotencyKey != "key-1" {
				t.Fatalf("expected idempotency key, got %q", input.IdempotencyKey)
			}
			if input.Location.Coordinates == nil || input.Location.Coordinates.Lat != 19.43 {
				t.Fatalf("coordinates not mapped: %+v", input.Location)
			}
			return &ports.CreateBookingResult{Booking: sampleBooking(domain.StatusPending)}, nil
		},
	}
	h := NewBookingHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings", createBody)
	c.Request().Header.Set("Idempotency-Key", "key-1")
	signIn(c, "client_1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	data := decodeEnvelope(t, rec)
	if data["status"] != "pending" {
		t.Fatalf("expected pending, got %v", data["status"])
	}
	actions, _ := data["next_actions"].([]any)
	if len(actions) != 2 || actions[0] != "accept" || actions[1] != "reject" {
		t.Fatalf("unexpected next_actions: %v", data["next_actions"])
	}
}

func TestBookingHandler_Create_IdempotentReplay(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		createFn: func(ctx context.Context, input ports.CreateBookingInput) (*ports.CreateBookingResult, error) {
			return &ports.CreateBookingResult{Booking: sampleBooking(domain.StatusPending), AlreadyExisted: true}, nil
		},
	}
	h := NewBookingHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings", createBody)
	signIn(c, "client_1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
}

func TestBookingHandler_Create_Unauthenticated(t *testing.T) {
	e := newTestEcho()
	h := NewBookingHandler(&stubBookingService{})

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings", createBody)
	expectHTTPError(t, h.Create(c), http.StatusUnauthorized)
}

func TestBookingHandler_Create_ValidationFailure(t *testing.T) {
	e := newTestEcho()
	h := NewBookingHandler(&stubBookingService{})

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings", `{"service_id":"svc_plumbing"}`)
	signIn(c, "client_1")
	expectHTTPError(t, h.Create(c), http.StatusUnprocessableEntity)
}

func TestBookingHandler_Get_NotFound(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		getFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
			if bookingID != "bk_missing" {
				t.Fatalf("unexpected id %q", bookingID)
			}
			return nil, domain.ErrBookingNotFound
		},
	}
	h := NewBookingHandler(stub)

	c, _ := newJSONContext(e, http.MethodGet, "/v1/bookings/bk_missing", "")
	c.SetParamNames("id")
	c.SetParamValues("bk_missing")
	signIn(c, "client_1")

	if err := h.Get(c); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookingHandler_Get_AcceptedHasCheckoutLink(t *testing.T) {
	e := newTestEcho()
	fee := int64(9500)
	stub := &stubBookingService{
		getFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.Booking, error) {
			b := sampleBooking(domain.StatusAccepted)
			b.FeeCents = &fee
			return b, nil
		},
	}
	h := NewBookingHandler(stub)

	c, rec := newJSONContext(e, http.MethodGet, "/v1/bookings/bk_1", "")
	c.SetParamNames("id")
	c.SetParamValues("bk_1")
	signIn(c, "client_1")

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decodeEnvelope(t, rec)
	if data["fee"] != "95.00" {
		t.Fatalf("expected fee 95.00, got %v", data["fee"])
	}
	links, _ := data["_links"].(map[string]any)
	if links["checkout"] != "/v1/bookings/bk_1/checkout" {
		t.Fatalf("expected checkout link, got %v", links)
	}
}

func TestBookingHandler_List_ProviderScope(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		listFn: func(ctx context.Context, input ports.ListBookingsInput) (*ports.ListBookingsResult, error) {
			if input.Role != domain.RoleProvider || input.Status != "pending" || input.Page != 2 || input.Limit != 5 {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &ports.ListBookingsResult{
				Items:      []*domain.Booking{sampleBooking(domain.StatusPending)},
				Total:      6,
				Page:       2,
				Limit:      5,
				TotalPages: 2,
			}, nil
		},
	}
	h := NewBookingHandler(stub)

	c, rec := newJSONContext(e, http.MethodGet, "/v1/bookings?role=provider&status=pending&page=2&limit=5", "")
	signIn(c, "provider_1")

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decodeEnvelope(t, rec)
	items, _ := data["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if _, ok := items[0].(map[string]any)["status_history"]; ok {
		t.Fatal("list items must not carry status history")
	}
}

func TestBookingHandler_List_InvalidRole(t *testing.T) {
	e := newTestEcho()
	h := NewBookingHandler(&stubBookingService{})

	c, _ := newJSONContext(e, http.MethodGet, "/v1/bookings?role=admin", "")
	signIn(c, "client_1")
	expectHTTPError(t, h.List(c), http.StatusBadRequest)
}

func TestBookingHandler_Transition_AcceptParsesFee(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		transitionFn: func(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
			if input.Action != domain.ActionAccept || input.AmountCents == nil || *input.AmountCents != 9550 {
				t.Fatalf("unexpected input: %+v", input)
			}
			b := sampleBooking(domain.StatusAccepted)
			b.FeeCents = input.AmountCents
			return &ports.TransitionResult{Booking: b, From: domain.StatusPending, Applied: true}, nil
		},
	}
	h := NewBookingHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/transitions", `{"action":"accept","fee":"95.50"}`)
	c.SetParamNames("id")
	c.SetParamValues("bk_1")
	signIn(c, "provider_1")

	if err := h.Transition(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decodeEnvelope(t, rec)
	if data["from"] != "pending" || data["applied"] != true {
		t.Fatalf("unexpected transition payload: %+v", data)
	}
}

func TestBookingHandler_Transition_AcceptWithoutFeeReachesService(t *testing.T) {
	e := newTestEcho()
	called := false
	stub := &stubBookingService{
		transitionFn: func(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
			called = true
			if input.AmountCents != nil || input.FeeErr != nil {
				t.Fatalf("expected no fee, got %+v", input)
			}
			return nil, domain.ErrInvalidFee
		},
	}
	h := NewBookingHandler(stub)

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/transitions", `{"action":"accept"}`)
	signIn(c, "provider_1")
	if err := h.Transition(c); !errors.Is(err, domain.ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if !called {
		t.Fatal("expected the service to judge a missing fee")
	}
}

func TestBookingHandler_Transition_BadFeeIsJudgedAfterRole(t *testing.T) {
	for _, fee := range []string{"0", "-5", "12.345", "abc"} {
		t.Run(fee, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubBookingService{
				transitionFn: func(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
					if !errors.Is(input.FeeErr, domain.ErrInvalidFee) {
						t.Fatalf("expected fee error to be forwarded, got %v", input.FeeErr)
					}
					// A client may not accept at all.
					return nil, domain.ErrUnauthorized
				},
			}
			h := NewBookingHandler(stub)

			c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/transitions", `{"action":"accept","fee":"`+fee+`"}`)
			signIn(c, "client_1")
			if err := h.Transition(c); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestBookingHandler_Transition_PayIsNotAnAction(t *testing.T) {
	e := newTestEcho()
	h := NewBookingHandler(&stubBookingService{})

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/transitions", `{"action":"pay"}`)
	signIn(c, "client_1")
	expectHTTPError(t, h.Transition(c), http.StatusUnprocessableEntity)
}

func TestBookingHandler_Transition_ServiceError(t *testing.T) {
	e := newTestEcho()
	stub := &stubBookingService{
		transitionFn: func(ctx context.Context, input ports.TransitionInput) (*ports.TransitionResult, error) {
			return nil, domain.ErrConflict
		},
	}
	h := NewBookingHandler(stub)

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/transitions", `{"action":"mark_done"}`)
	signIn(c, "provider_1")
	if err := h.Transition(c); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestToBookingResponse_UnknownStoredStatus(t *testing.T) {
	b := sampleBooking(domain.BookingStatus("archived"))

	resp := toBookingResponse(b)
	if resp.Status != "archived" {
		t.Fatalf("expected raw status, got %q", resp.Status)
	}
	if len(resp.NextActions) != 0 {
		t.Fatalf("expected no next actions, got %v", resp.NextActions)
	}
	if resp.Links.Checkout != "" {
		t.Fatalf("expected no checkout link, got %q", resp.Links.Checkout)
	}
}
