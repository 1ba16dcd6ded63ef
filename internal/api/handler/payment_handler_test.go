package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

type stubPaymentService struct {
	checkoutFn  func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error)
	confirmFn   func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error)
	reconcileFn func(ctx context.Context, bookingID, sessionID string, actor domain.Actor) (*domain.PaymentRecord, error)
}

func (s *stubPaymentService) InitiateCheckout(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error) {
	return s.checkoutFn(ctx, bookingID, actor)
}

func (s *stubPaymentService) Confirm(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error) {
	return s.confirmFn(ctx, bookingID, actor)
}

func (s *stubPaymentService) ReconcileMissing(ctx context.Context, bookingID, sessionID string, actor domain.Actor) (*domain.PaymentRecord, error) {
	return s.reconcileFn(ctx, bookingID, sessionID, actor)
}

func (s *stubPaymentService) ConfirmFromWebhook(ctx context.Context, bookingID, sessionID string) (*domain.PaymentRecord, error) {
	return nil, errors.New("not used by handlers")
}

func samplePayment(source domain.PaymentSource) *domain.PaymentRecord {
	return &domain.PaymentRecord{
		BookingID:        "bk_1",
		GatewaySessionID: "cs_1",
		AmountCents:      9500,
		Currency:         "usd",
		Status:           domain.PaymentStatusSucceeded,
		Source:           source,
		Metadata:         domain.PaymentMetadata{ServiceName: "Plumbing", ProviderName: "Pat"},
		CreatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPaymentHandler_Checkout_Success(t *testing.T) {
	e := newTestEcho()
	expires := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	stub := &stubPaymentService{
		checkoutFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error) {
			if bookingID != "bk_1" || actor.UserID != "client_1" {
				t.Fatalf("unexpected args: %s %+v", bookingID, actor)
			}
			return &domain.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1", ExpiresAt: expires}, nil
		},
	}
	h := NewPaymentHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/checkout", "")
	c.SetParamNames("id")
	c.SetParamValues("bk_1")
	signIn(c, "client_1")

	if err := h.Checkout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	data := decodeEnvelope(t, rec)
	if data["session_id"] != "cs_1" || data["url"] != "https://pay.example/cs_1" {
		t.Fatalf("unexpected checkout payload: %+v", data)
	}
}

func TestPaymentHandler_Checkout_GatewayUnavailable(t *testing.T) {
	e := newTestEcho()
	stub := &stubPaymentService{
		checkoutFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.CheckoutSession, error) {
			return nil, domain.ErrGatewayUnavailable
		},
	}
	h := NewPaymentHandler(stub)

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/checkout", "")
	signIn(c, "client_1")
	if err := h.Checkout(c); !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestPaymentHandler_Confirm_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubPaymentService{
		confirmFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error) {
			return samplePayment(domain.PaymentSourceConfirm), nil
		},
	}
	h := NewPaymentHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/payment/confirm", "")
	c.SetParamNames("id")
	c.SetParamValues("bk_1")
	signIn(c, "client_1")

	if err := h.Confirm(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := decodeEnvelope(t, rec)
	if data["amount"] != "95.00" || data["source"] != "confirm" || data["service_name"] != "Plumbing" {
		t.Fatalf("unexpected payment payload: %+v", data)
	}
}

func TestPaymentHandler_Confirm_Incomplete(t *testing.T) {
	e := newTestEcho()
	stub := &stubPaymentService{
		confirmFn: func(ctx context.Context, bookingID string, actor domain.Actor) (*domain.PaymentRecord, error) {
			return nil, domain.ErrPaymentIncomplete
		},
	}
	h := NewPaymentHandler(stub)

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/payment/confirm", "")
	signIn(c, "client_1")
	if err := h.Confirm(c); !errors.Is(err, domain.ErrPaymentIncomplete) {
		t.Fatalf("expected ErrPaymentIncomplete, got %v", err)
	}
}

func TestPaymentHandler_Reconcile_PassesSession(t *testing.T) {
	e := newTestEcho()
	stub := &stubPaymentService{
		reconcileFn: func(ctx context.Context, bookingID, sessionID string, actor domain.Actor) (*domain.PaymentRecord, error) {
			if bookingID != "bk_1" || sessionID != "cs_1" {
				t.Fatalf("unexpected args: %s %s", bookingID, sessionID)
			}
			return samplePayment(domain.PaymentSourceReconcile), nil
		},
	}
	h := NewPaymentHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/payment/reconcile", `{"session_id":"cs_1"}`)
	c.SetParamNames("id")
	c.SetParamValues("bk_1")
	signIn(c, "client_1")

	if err := h.Reconcile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if data := decodeEnvelope(t, rec); data["source"] != "reconcile" {
		t.Fatalf("unexpected source: %v", data["source"])
	}
}

func TestPaymentHandler_Reconcile_MissingSession(t *testing.T) {
	e := newTestEcho()
	h := NewPaymentHandler(&stubPaymentService{})

	c, _ := newJSONContext(e, http.MethodPost, "/v1/bookings/bk_1/payment/reconcile", `{}`)
	signIn(c, "client_1")
	expectHTTPError(t, h.Reconcile(c), http.StatusUnprocessableEntity)
}
