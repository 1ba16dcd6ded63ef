package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a single topic keyed by booking id,
// so all events of one booking land on one partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    zerolog.Logger
}

// NewKafkaPublisher creates a synchronous, all-acks producer.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: topic, log: log}
}

// PublishBookingStatusChanged emits booking.created when from is empty and
// booking.status_changed otherwise.
func (p *KafkaPublisher) PublishBookingStatusChanged(ctx context.Context, b *domain.Booking, from domain.BookingStatus) error {
	eventType := TypeBookingStatusChanged
	if from == "" {
		eventType = TypeBookingCreated
	}
	event, err := NewEvent(eventType, b.ID, "booking", bookingData(b, from))
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return p.publish(ctx, event)
}

// PublishPaymentRecorded emits payment.recorded.
func (p *KafkaPublisher) PublishPaymentRecorded(ctx context.Context, rec *domain.PaymentRecord) error {
	event, err := NewEvent(TypePaymentRecorded, rec.BookingID, "booking", paymentData(rec))
	if err != nil {
		return fmt.Errorf("build %s event: %w", TypePaymentRecorded, err)
	}
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.EventType, p.topic, err)
	}

	p.log.Debug().
		Str("topic", p.topic).
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		Msg("event published")
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records events in the service log when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishBookingStatusChanged(_ context.Context, b *domain.Booking, from domain.BookingStatus) error {
	p.log.Info().
		Str("booking_id", b.ID).
		Str("from", string(from)).
		Str("to", string(b.Status)).
		Msg("booking event")
	return nil
}

func (p *LogPublisher) PublishPaymentRecorded(_ context.Context, rec *domain.PaymentRecord) error {
	p.log.Info().
		Str("booking_id", rec.BookingID).
		Str("session_id", rec.GatewaySessionID).
		Int64("amount_cents", rec.AmountCents).
		Msg("payment event")
	return nil
}

func bookingData(b *domain.Booking, from domain.BookingStatus) BookingStatusChangedData {
	return BookingStatusChangedData{
		BookingID:  b.ID,
		ClientID:   b.ClientID,
		ProviderID: b.ProviderID,
		ServiceID:  b.ServiceID,
		From:       string(from),
		To:         string(b.Status),
		FeeCents:   b.FeeCents,
		Currency:   b.Currency,
	}
}

func paymentData(rec *domain.PaymentRecord) PaymentRecordedData {
	return PaymentRecordedData{
		BookingID:        rec.BookingID,
		GatewaySessionID: rec.GatewaySessionID,
		AmountCents:      rec.AmountCents,
		Currency:         rec.Currency,
		Source:           string(rec.Source),
	}
}
