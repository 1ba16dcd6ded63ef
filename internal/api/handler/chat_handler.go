package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

type threadBookingResponse struct {
	ServiceName     string    `json:"service_name"`
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name"`
	Status          string    `json:"status"`
	ScheduledTime   time.Time `json:"scheduled_time"`
}

type threadSummaryResponse struct {
	ThreadID      string                `json:"thread_id"`
	BookingID     string                `json:"booking_id"`
	LastMessage   string                `json:"last_message"`
	LastMessageAt time.Time             `json:"last_message_at"`
	UnreadCount   int                   `json:"unread_count"`
	Booking       threadBookingResponse `json:"booking"`
}

type recentThreadsResponse struct {
	Threads []threadSummaryResponse `json:"threads"`
	Total   int64                   `json:"total"`
	Limit   int                     `json:"limit"`
	HasMore bool                    `json:"has_more"`
}

// ChatHandler serves booking-linked chat thread summaries.
type ChatHandler struct {
	service ports.ChatService
}

func NewChatHandler(service ports.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Recent handles GET /v1/threads/recent.
//
// @Summary      Most recent chat threads with booking snapshots
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        role  query     string  false  "client (default) or provider"
// @Success      200   {object}  Envelope{data=recentThreadsResponse}
// @Failure      400   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Router       /v1/threads/recent [get]
func (h *ChatHandler) Recent(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	role, err := ctxRole(c)
	if err != nil {
		return err
	}

	digest, err := h.service.RecentThreads(c.Request().Context(), actor.UserID, role)
	if err != nil {
		return err
	}

	resp := recentThreadsResponse{
		Threads: make([]threadSummaryResponse, 0, digest.Limit),
		Total:   digest.Total,
		Limit:   digest.Limit,
	}
	for s, err := range digest.Threads {
		if err != nil {
			return err
		}
		resp.Threads = append(resp.Threads, threadSummaryResponse{
			ThreadID:      s.ThreadID,
			BookingID:     s.BookingID,
			LastMessage:   s.LastMessage,
			LastMessageAt: s.LastMessageAt.UTC(),
			UnreadCount:   s.UnreadCount,
			Booking: threadBookingResponse{
				ServiceName:     s.Booking.ServiceName,
				CounterpartID:   s.Booking.CounterpartID,
				CounterpartName: s.Booking.CounterpartName,
				Status:          string(s.Booking.Status),
				ScheduledTime:   s.Booking.ScheduledTime.UTC(),
			},
		})
	}
	resp.HasMore = digest.Total > int64(len(resp.Threads))
	return respond(c, http.StatusOK, resp)
}
