package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const maxWebhookBody = 64 << 10

// EventDispatcher is the interface the handler uses to enqueue gateway events.
type EventDispatcher interface {
	Enqueue(event ports.GatewayEventInput) error
}

// SignatureVerifier authenticates a raw webhook body.
type SignatureVerifier func(header string, body []byte) error

// SandboxPayer completes checkout sessions on the development gateway.
type SandboxPayer interface {
	MarkPaid(ctx context.Context, sessionID string) (*domain.SessionStatus, error)
}

// WebhookHandler ingests gateway notifications.
type WebhookHandler struct {
	dispatcher      EventDispatcher
	verify          SignatureVerifier
	signatureHeader string
	log             zerolog.Logger
}

// NewWebhookHandler creates a WebhookHandler backed by the given dispatcher.
func NewWebhookHandler(dispatcher EventDispatcher, verify SignatureVerifier, signatureHeader string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:      dispatcher,
		verify:          verify,
		signatureHeader: signatureHeader,
		log:             log,
	}
}

// Receive handles POST /v1/payments/webhook; verifies, enqueues, returns 202.
//
// @Summary      Receive a payment gateway notification
// @Description  Signed by the gateway. Events are processed asynchronously and in order per booking.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Gateway-Signature  header    string               true  "t=<unix>,v1=<hmac>"
// @Param        body               body      gatewayEventRequest  true  "Gateway event"
// @Success      202                {object}  Envelope{data=acceptedResponse}
// @Failure      400                {object}  Envelope
// @Failure      401                {object}  Envelope
// @Failure      503                {object}  Envelope
// @Router       /v1/payments/webhook [post]
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if err := h.verify(c.Request().Header.Get(h.signatureHeader), body); err != nil {
		h.log.Warn().Err(err).Str("remote_addr", c.RealIP()).Msg("webhook signature rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var req gatewayEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	in := toGatewayEventInput(req)
	if err := h.dispatcher.Enqueue(in); err != nil {
		return h.enqueueFailed(c, in, err)
	}
	return respond(c, http.StatusAccepted, acceptedResponse{EventID: in.EventID, Message: "event accepted"})
}

func (h *WebhookHandler) enqueueFailed(c echo.Context, in ports.GatewayEventInput, err error) error {
	h.log.Error().Err(err).Str("event_id", in.EventID).Str("booking_id", in.BookingID).Msg("gateway event not enqueued")
	c.Response().Header().Set("Retry-After", "5")
	return RespondError(c, http.StatusServiceUnavailable, ErrorBody{
		Code:      "queue_full",
		Message:   "event not accepted, redeliver later",
		Retryable: true,
	})
}

// SandboxHandler drives the in-process gateway in development.
type SandboxHandler struct {
	payer      SandboxPayer
	dispatcher EventDispatcher
}

func NewSandboxHandler(payer SandboxPayer, dispatcher EventDispatcher) *SandboxHandler {
	return &SandboxHandler{payer: payer, dispatcher: dispatcher}
}

// Pay handles POST /sandbox/checkout/:session_id/pay.
// With ?deliver=false the webhook is dropped, leaving reconciliation to the
// client's confirm or reconcile call.
func (h *SandboxHandler) Pay(c echo.Context) error {
	status, err := h.payer.MarkPaid(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return err
	}

	delivered := !strings.EqualFold(c.QueryParam("deliver"), "false")
	if delivered {
		in := ports.GatewayEventInput{
			EventID:    "evt_sandbox_" + uuid.NewString(),
			Type:       domain.GatewayEventCheckoutCompleted,
			SessionID:  status.SessionID,
			BookingID:  status.BookingID,
			OccurredAt: time.Now().UTC(),
		}
		delivered = h.dispatcher.Enqueue(in) == nil
	}

	return respond(c, http.StatusOK, sandboxPayResponse{
		SessionID: status.SessionID,
		BookingID: status.BookingID,
		Paid:      status.Paid,
		Delivered: delivered,
	})
}
