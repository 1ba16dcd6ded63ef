package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// PaymentHandler exposes checkout and the two client-driven settlement paths.
type PaymentHandler struct {
	service ports.PaymentService
}

func NewPaymentHandler(service ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Checkout handles POST /v1/bookings/:id/checkout.
//
// @Summary      Open a gateway checkout for an accepted booking
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      201  {object}  Envelope{data=checkoutResponse}
// @Failure      403  {object}  Envelope
// @Failure      422  {object}  Envelope
// @Failure      503  {object}  Envelope
// @Router       /v1/bookings/{id}/checkout [post]
func (h *PaymentHandler) Checkout(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	session, err := h.service.InitiateCheckout(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, toCheckoutResponse(session))
}

// Confirm handles POST /v1/bookings/:id/payment/confirm.
//
// @Summary      Confirm payment against the booking's checkout session
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  Envelope{data=paymentResponse}
// @Failure      402  {object}  Envelope
// @Failure      409  {object}  Envelope
// @Failure      422  {object}  Envelope
// @Failure      503  {object}  Envelope
// @Router       /v1/bookings/{id}/payment/confirm [post]
func (h *PaymentHandler) Confirm(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	rec, err := h.service.Confirm(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toPaymentResponse(rec))
}

// Reconcile handles POST /v1/bookings/:id/payment/reconcile.
//
// @Summary      Recover a payment whose confirmation never arrived
// @Description  Uses the session id returned to the client by the gateway redirect.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Booking ID"
// @Param        body  body      reconcileRequest  true  "Gateway session"
// @Success      200   {object}  Envelope{data=paymentResponse}
// @Failure      402   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Failure      503   {object}  Envelope
// @Router       /v1/bookings/{id}/payment/reconcile [post]
func (h *PaymentHandler) Reconcile(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req reconcileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	rec, err := h.service.ReconcileMissing(c.Request().Context(), c.Param("id"), req.SessionID, actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toPaymentResponse(rec))
}
