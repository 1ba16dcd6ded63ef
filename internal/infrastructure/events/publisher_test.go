package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func testBooking() *domain.Booking {
	fee := int64(9500)
	return &domain.Booking{
		ID:         "bk_1",
		ClientID:   "u_client",
		ProviderID: "u_provider",
		ServiceID:  "svc_plumbing",
		Status:     domain.StatusAccepted,
		FeeCents:   &fee,
		Currency:   "usd",
	}
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent(TypePaymentRecorded, "bk_1", "booking", map[string]int{"amount_cents": 100})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, source, event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"amount_cents":100}`, string(event.Data))

	_, err = NewEvent(TypePaymentRecorded, "bk_1", "booking", make(chan int))
	assert.Error(t, err)
}

func TestKafkaPublisher_BookingEvents(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "marketplace.events", log: zerolog.Nop()}
	ctx := context.Background()

	b := testBooking()
	require.NoError(t, p.PublishBookingStatusChanged(ctx, b, ""))
	require.NoError(t, p.PublishBookingStatusChanged(ctx, b, domain.StatusPending))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, TypeBookingCreated, header(w.msgs[0], "event_type"))
	assert.Equal(t, TypeBookingStatusChanged, header(w.msgs[1], "event_type"))

	msg := w.msgs[1]
	assert.Equal(t, "marketplace.events", msg.Topic)
	assert.Equal(t, "bk_1", string(msg.Key))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	var data BookingStatusChangedData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "pending", data.From)
	assert.Equal(t, "accepted", data.To)
	require.NotNil(t, data.FeeCents)
	assert.Equal(t, int64(9500), *data.FeeCents)
}

func TestKafkaPublisher_PaymentRecorded(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "t", log: zerolog.Nop()}

	err := p.PublishPaymentRecorded(context.Background(), &domain.PaymentRecord{
		BookingID: "bk_1", GatewaySessionID: "cs_1", AmountCents: 9500, Currency: "usd", Source: domain.PaymentSourceWebhook,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	var event Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, TypePaymentRecorded, event.EventType)
	assert.JSONEq(t, `{"booking_id":"bk_1","gateway_session_id":"cs_1","amount_cents":9500,"currency":"usd","source":"webhook"}`, string(event.Data))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, topic: "t", log: zerolog.Nop()}

	err := p.PublishBookingStatusChanged(context.Background(), testBooking(), domain.StatusPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())
	assert.NoError(t, p.PublishBookingStatusChanged(context.Background(), testBooking(), ""))
	assert.NoError(t, p.PublishPaymentRecorded(context.Background(), &domain.PaymentRecord{BookingID: "bk_1"}))
}
