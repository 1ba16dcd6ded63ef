// Package metrics defines and registers all custom Prometheus metrics for the
// marketplace engine. It is the single source of truth for metric names,
// labels, and help strings. Metrics are registered with the default registry
// through promauto at package init.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const namespace = "marketplace"

// ── Booking metrics ───────────────────────────────────────────────────────────

// BookingTransitionsTotal counts committed lifecycle edges.
// Label:
//   - to: the status the booking moved to ("pending" for a new booking)
var BookingTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_transitions_total",
		Help:      "Total number of committed booking status changes, by target status.",
	},
	[]string{"to"},
)

// ── Payment metrics ───────────────────────────────────────────────────────────

// PaymentsRecordedTotal counts payment records created.
// Label:
//   - source: webhook, confirm, or reconcile
var PaymentsRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_recorded_total",
		Help:      "Total number of payment records created, by settlement path.",
	},
	[]string{"source"},
)

// GatewayBreakerState tracks the payment gateway circuit breaker
// (0=closed, 1=half-open, 2=open).
var GatewayBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_breaker_state",
		Help:      "Current state of the payment gateway circuit breaker (0=closed, 1=half-open, 2=open).",
	},
	[]string{"name"},
)

// ── Gateway event metrics ─────────────────────────────────────────────────────

// GatewayEventsTotal counts received gateway notifications by outcome.
// Label:
//   - outcome: processed, duplicate, ignored, or failed
var GatewayEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_events_total",
		Help:      "Total number of gateway events handled, by outcome.",
	},
	[]string{"outcome"},
)

// GatewayEventErrorsTotal counts dispatcher failures after retries.
// Label:
//   - reason: short error class (e.g. "amount_mismatch", "gateway_unavailable")
var GatewayEventErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_event_errors_total",
		Help:      "Total number of gateway events that failed processing.",
	},
	[]string{"reason"},
)

// GatewayEventLag measures delay between the gateway emitting an event and the
// dispatcher finishing it.
var GatewayEventLag = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_event_lag_seconds",
		Help:      "Seconds between gateway event creation and processing completion.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	},
)

// BreakerStateChanged updates GatewayBreakerState; pass it as the gateway
// client's state change hook.
func BreakerStateChanged(name string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	GatewayBreakerState.WithLabelValues(name).Set(v)
}

// ObserveGatewayEvent records the dispatcher's final result for one event.
func ObserveGatewayEvent(event ports.GatewayEventInput, err error) {
	if !event.OccurredAt.IsZero() {
		GatewayEventLag.Observe(time.Since(event.OccurredAt).Seconds())
	}
	if err != nil {
		GatewayEventErrorsTotal.WithLabelValues(errorReason(err)).Inc()
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, domain.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, domain.ErrSessionMismatch):
		return "session_mismatch"
	case errors.Is(err, domain.ErrPaymentIncomplete):
		return "payment_incomplete"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

// ── Instrumented adapters ─────────────────────────────────────────────────────

type instrumentedPublisher struct {
	next ports.EventPublisher
}

// InstrumentPublisher counts committed transitions and payments as they are
// published.
func InstrumentPublisher(next ports.EventPublisher) ports.EventPublisher {
	return &instrumentedPublisher{next: next}
}

func (p *instrumentedPublisher) PublishBookingStatusChanged(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	BookingTransitionsTotal.WithLabelValues(string(b.Status)).Inc()
	return p.next.PublishBookingStatusChanged(ctx, b, from)
}

func (p *instrumentedPublisher) PublishPaymentRecorded(ctx context.Context, rec *domain.PaymentRecord) error {
	PaymentsRecordedTotal.WithLabelValues(string(rec.Source)).Inc()
	return p.next.PublishPaymentRecorded(ctx, rec)
}

type instrumentedEventLog struct {
	next ports.GatewayEventLog
}

// InstrumentEventLog counts gateway event outcomes as they are audited.
func InstrumentEventLog(next ports.GatewayEventLog) ports.GatewayEventLog {
	return &instrumentedEventLog{next: next}
}

func (l *instrumentedEventLog) Insert(ctx context.Context, event *domain.GatewayEvent, outcome string) error {
	GatewayEventsTotal.WithLabelValues(outcome).Inc()
	return l.next.Insert(ctx, event, outcome)
}
