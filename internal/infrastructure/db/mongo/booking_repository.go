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
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const collectionBookings = "bookings"

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(collectionBookings)}
}

// Create inserts a new booking document.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, b)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost an idempotency-key race against an identical request.
			return fmt.Errorf("insert booking: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// FindByID retrieves a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByIdempotencyKey retrieves the booking a client created with key.
func (r *BookingRepository) FindByIdempotencyKey(ctx context.Context, clientID, key string) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"client_id": clientID, "idempotency_key": key})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domain.Booking, error) {
	var b domain.Booking
	err := r.col.FindOne(ctx, filter).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns one page of bookings, newest first, and the total match count.
func (r *BookingRepository) List(ctx context.Context, f ports.ListBookingsFilter) ([]*domain.Booking, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.ClientID != "" {
		filter["client_id"] = f.ClientID
	}
	if f.ProviderID != "" {
		filter["provider_id"] = f.ProviderID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find bookings: %w", err)
	}
	defer cur.Close(ctx)

	items := make([]*domain.Booking, 0, f.Limit)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode bookings: %w", err)
	}
	return items, total, nil
}

// UpdateStatus sets the new status and appends the history entry in one
// document update, conditional on the stored status still being c.From.
func (r *BookingRepository) UpdateStatus(ctx context.Context, c domain.StatusChange) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{
		"status":     string(c.To),
		"updated_at": c.Entry.Timestamp,
	}
	if c.FeeCents != nil {
		set["fee_cents"] = *c.FeeCents
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": c.BookingID, "status": string(c.From)},
		bson.M{
			"$set":  set,
			"$push": bson.M{"status_history": c.Entry},
		},
	)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, c.BookingID)
	}
	return nil
}

// AttachCheckoutSession records the gateway session while the booking is
// still accepted.
func (r *BookingRepository) AttachCheckoutSession(ctx context.Context, bookingID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": bookingID, "status": string(domain.StatusAccepted)},
		bson.M{"$set": bson.M{
			"checkout_session_id": sessionID,
			"updated_at":          time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("attach checkout session: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, bookingID)
	}
	return nil
}

// missOrConflict tells a missing booking apart from a status that moved.
func (r *BookingRepository) missOrConflict(ctx context.Context, id string) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count booking: %w", err)
	}
	if n == 0 {
		return domain.ErrBookingNotFound
	}
	return domain.ErrConflict
}

// EnsureIndexes creates necessary indexes on the bookings collection.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
