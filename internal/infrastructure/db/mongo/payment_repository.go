package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const collectionPayments = "payments"

// PaymentRepository stores one payment document per booking, keyed by the
// booking id.
type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(collectionPayments)}
}

func (r *PaymentRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec domain.PaymentRecord
	if err := r.col.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Upsert inserts rec only when no record exists for its booking. An existing
// record is returned untouched.
func (r *PaymentRepository) Upsert(ctx context.Context, rec *domain.PaymentRecord) (*domain.PaymentRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": rec.BookingID},
		bson.M{"$setOnInsert": bson.M{
			"gateway_session_id": rec.GatewaySessionID,
			"amount_cents":       rec.AmountCents,
			"currency":           rec.Currency,
			"status":             string(rec.Status),
			"source":             string(rec.Source),
			"metadata":           rec.Metadata,
			"created_at":         rec.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, fmt.Errorf("upsert payment: %w", err)
		}
		// Either a concurrent upsert for the same booking won, or the
		// session is already recorded against another booking.
		stored, ferr := r.FindByBookingID(ctx, rec.BookingID)
		if ferr == nil {
			return stored, false, nil
		}
		return nil, false, fmt.Errorf("upsert payment: %w", domain.ErrSessionMismatch)
	}

	if res.UpsertedCount == 0 {
		stored, err := r.FindByBookingID(ctx, rec.BookingID)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}
	return rec, true, nil
}

// EnsureIndexes makes a gateway session settle at most one booking.
func (r *PaymentRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "gateway_session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
