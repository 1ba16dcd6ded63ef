package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const collectionChatThreads = "chat_threads"

// ChatThreadRepository reads thread metadata written by the chat transport.
type ChatThreadRepository struct {
	col *mongo.Collection
}

func NewChatThreadRepository(db *mongo.Database) *ChatThreadRepository {
	return &ChatThreadRepository{col: db.Collection(collectionChatThreads)}
}

func (r *ChatThreadRepository) RecentForUser(ctx context.Context, userID string, role domain.Role, limit int) ([]domain.ChatThread, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter, err := sideFilter(userID, role)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find threads: %w", err)
	}
	defer cur.Close(ctx)

	threads := make([]domain.ChatThread, 0, limit)
	if err := cur.All(ctx, &threads); err != nil {
		return nil, fmt.Errorf("decode threads: %w", err)
	}
	return threads, nil
}

func (r *ChatThreadRepository) CountForUser(ctx context.Context, userID string, role domain.Role) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter, err := sideFilter(userID, role)
	if err != nil {
		return 0, err
	}
	return r.col.CountDocuments(ctx, filter)
}

func sideFilter(userID string, role domain.Role) (bson.M, error) {
	switch role {
	case domain.RoleClient:
		return bson.M{"client_id": userID}, nil
	case domain.RoleProvider:
		return bson.M{"provider_id": userID}, nil
	default:
		return nil, fmt.Errorf("thread filter: %w: role %q", domain.ErrInvalidInput, role)
	}
}

// EnsureIndexes creates necessary indexes on the chat_threads collection.
func (r *ChatThreadRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "last_message_at", Value: -1}}},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "last_message_at", Value: -1}}},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
