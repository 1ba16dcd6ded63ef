package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const collectionGatewayEvents = "gateway_events"

// GatewayEventRepository is the audit trail of received gateway notifications.
type GatewayEventRepository struct {
	col *mongo.Collection
}

// NewGatewayEventRepository creates a new GatewayEventRepository.
func NewGatewayEventRepository(db *mongo.Database) *GatewayEventRepository {
	return &GatewayEventRepository{col: db.Collection(collectionGatewayEvents)}
}

// Insert persists a gateway event with the outcome of processing it.
func (r *GatewayEventRepository) Insert(ctx context.Context, event *domain.GatewayEvent, outcome string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"event_id":     event.ID,
		"type":         event.Type,
		"session_id":   event.SessionID,
		"booking_id":   event.BookingID,
		"outcome":      outcome,
		"processed_at": time.Now().UTC(),
	}
	if !event.OccurredAt.IsZero() {
		doc["occurred_at"] = event.OccurredAt.UTC()
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}
