package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service ports.BookingService
}

func NewBookingHandler(service ports.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create handles POST /v1/bookings.
//
// @Summary      Request a service from a provider
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                false  "Replays return the original booking"
// @Param        body             body      createBookingRequest  true   "Booking request"
// @Success      201              {object}  Envelope{data=bookingResponse}
// @Success      200              {object}  Envelope{data=bookingResponse}  "Idempotent replay"
// @Failure      400              {object}  Envelope
// @Failure      403              {object}  Envelope
// @Failure      422              {object}  Envelope
// @Router       /v1/bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req createBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	idempotencyKey := c.Request().Header.Get("Idempotency-Key")
	result, err := h.service.CreateBooking(c.Request().Context(), toCreateInput(req, actor, idempotencyKey))
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	return respond(c, status, toBookingResponse(result.Booking))
}

// Get handles GET /v1/bookings/:id.
//
// @Summary      Get a booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  Envelope{data=bookingResponse}
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /v1/bookings/{id} [get]
func (h *BookingHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toBookingResponse(b))
}

// List handles GET /v1/bookings.
//
// @Summary      List the caller's bookings
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        role    query     string  false  "Side to list: client (default) or provider"
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (1-based)"
// @Param        limit   query     int     false  "Page size (max 100)"
// @Success      200     {object}  Envelope{data=listBookingsResponse}
// @Failure      400     {object}  Envelope
// @Failure      403     {object}  Envelope
// @Router       /v1/bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	role, err := ctxRole(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.service.ListBookingsForUser(c.Request().Context(), ports.ListBookingsInput{
		Actor:  actor,
		Role:   role,
		Status: c.QueryParam("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toListResponse(result))
}

// Transition handles POST /v1/bookings/:id/transitions.
//
// @Summary      Advance a booking through its lifecycle
// @Description  accept (provider, requires fee), reject (provider), mark_done (provider), complete (client).
// @Description  Payment is recorded by the payment endpoints, never here.
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Booking ID"
// @Param        body  body      transitionRequest  true  "Action and optional fee"
// @Success      200   {object}  Envelope{data=transitionResponse}
// @Failure      403   {object}  Envelope
// @Failure      409   {object}  Envelope
// @Failure      422   {object}  Envelope
// @Router       /v1/bookings/{id}/transitions [post]
func (h *BookingHandler) Transition(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	input := ports.TransitionInput{
		BookingID: c.Param("id"),
		Action:    domain.Action(req.Action),
		Actor:     actor,
	}
	if input.Action == domain.ActionAccept {
		// The service decides between Unauthorized and InvalidFee.
		input.AmountCents, input.FeeErr = parseFee(req.Fee)
	}

	res, err := h.service.Transition(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, transitionResponse{
		Booking: toBookingResponse(res.Booking),
		From:    string(res.From),
		Applied: res.Applied,
	})
}
