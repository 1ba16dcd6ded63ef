package handler

import (
	"github.com/shopspring/decimal"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

// --- Request → Service input ---

func toCreateInput(req createBookingRequest, actor domain.Actor, idempotencyKey string) ports.CreateBookingInput {
	in := ports.CreateBookingInput{
		Actor:          actor,
		ProviderID:     req.ProviderID,
		ServiceID:      req.ServiceID,
		Description:    req.Description,
		Location:       ports.LocationInput{Address: req.Location.Address},
		ScheduledTime:  req.ScheduledTime,
		IdempotencyKey: idempotencyKey,
	}
	if co := req.Location.Coordinates; co != nil {
		in.Location.Coordinates = &ports.CoordinatesInput{Lat: co.Lat, Lng: co.Lng}
	}
	return in
}

// parseFee converts a major-unit decimal string into cents. Empty means no fee.
func parseFee(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, domain.ErrInvalidFee
	}
	cents, err := domain.CentsFromDecimal(d)
	if err != nil {
		return nil, err
	}
	return &cents, nil
}

// --- Service result → HTTP response ---

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:                b.ID,
		ClientID:          b.ClientID,
		ProviderID:        b.ProviderID,
		ServiceID:         b.ServiceID,
		Description:       b.Description,
		Location:          locationResponse{Address: b.Location.Address},
		ScheduledTime:     b.ScheduledTime.UTC(),
		FeeCents:          b.FeeCents,
		Currency:          b.Currency,
		Status:            string(b.Status),
		NextActions:       make([]string, 0, 2),
		CheckoutSessionID: b.CheckoutSessionID,
		StatusHistory:     toStatusHistoryResponse(b.StatusHistory),
		CreatedAt:         b.CreatedAt.UTC(),
		UpdatedAt:         b.UpdatedAt.UTC(),
		Links:             bookingLinks{Self: "/v1/bookings/" + b.ID},
	}
	if co := b.Location.Coordinates; co != nil {
		resp.Location.Coordinates = &coordinatesResponse{Lat: co.Lat, Lng: co.Lng}
	}
	if b.FeeCents != nil {
		resp.Fee = domain.FormatCents(*b.FeeCents)
	}
	// A stored status outside the known set renders with no next actions.
	if st, err := domain.ParseBookingStatus(string(b.Status)); err == nil {
		for _, a := range st.NextActions() {
			resp.NextActions = append(resp.NextActions, string(a))
		}
	}
	if b.Status == domain.StatusAccepted {
		resp.Links.Checkout = "/v1/bookings/" + b.ID + "/checkout"
	}
	return resp
}

func toStatusHistoryResponse(items []domain.StatusHistoryEntry) []statusHistoryItemResponse {
	out := make([]statusHistoryItemResponse, len(items))
	for i, item := range items {
		out[i] = statusHistoryItemResponse{
			Status:    string(item.Status),
			Action:    string(item.Action),
			ActorID:   item.ActorID,
			Timestamp: item.Timestamp.UTC(),
		}
		if item.AmountCents != nil {
			out[i].Amount = domain.FormatCents(*item.AmountCents)
		}
	}
	return out
}

func toListResponse(r *ports.ListBookingsResult) listBookingsResponse {
	items := make([]bookingResponse, len(r.Items))
	for i, b := range r.Items {
		items[i] = toBookingResponse(b)
		items[i].StatusHistory = nil
	}
	return listBookingsResponse{
		Items: items,
		Pagination: paginationResponse{
			Total:      r.Total,
			Page:       r.Page,
			Limit:      r.Limit,
			TotalPages: r.TotalPages,
		},
	}
}

func toCheckoutResponse(s *domain.CheckoutSession) checkoutResponse {
	resp := checkoutResponse{SessionID: s.ID, URL: s.URL}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return resp
}

func toPaymentResponse(rec *domain.PaymentRecord) paymentResponse {
	return paymentResponse{
		BookingID:        rec.BookingID,
		GatewaySessionID: rec.GatewaySessionID,
		Amount:           domain.FormatCents(rec.AmountCents),
		AmountCents:      rec.AmountCents,
		Currency:         rec.Currency,
		Status:           string(rec.Status),
		Source:           string(rec.Source),
		ServiceName:      rec.Metadata.ServiceName,
		ProviderName:     rec.Metadata.ProviderName,
		CreatedAt:        rec.CreatedAt.UTC(),
	}
}
