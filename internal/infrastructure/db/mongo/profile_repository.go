package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const (
	collectionClientProfiles   = "client_profiles"
	collectionProviderProfiles = "provider_profiles"
)

// ProfileRepository is the durable profile store. Client and provider
// profiles live in separate collections keyed by user id.
type ProfileRepository struct {
	clients   *mongo.Collection
	providers *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{
		clients:   db.Collection(collectionClientProfiles),
		providers: db.Collection(collectionProviderProfiles),
	}
}

// FindProfiles reads both role profiles. Either lookup failing fails the
// whole call so a role record is never built from half the data.
func (r *ProfileRepository) FindProfiles(ctx context.Context, userID string) (domain.ProfileSet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client, err := findProfile(ctx, r.clients, userID)
	if err != nil {
		return domain.ProfileSet{}, fmt.Errorf("client profile: %w", err)
	}
	provider, err := findProfile(ctx, r.providers, userID)
	if err != nil {
		return domain.ProfileSet{}, fmt.Errorf("provider profile: %w", err)
	}
	return domain.ProfileSet{Client: client, Provider: provider}, nil
}

// CreateProfile inserts a profile; an existing one is left in place.
func (r *ProfileRepository) CreateProfile(ctx context.Context, role domain.Role, p *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var col *mongo.Collection
	switch role {
	case domain.RoleClient:
		col = r.clients
	case domain.RoleProvider:
		col = r.providers
	default:
		return fmt.Errorf("create profile: %w: role %q", domain.ErrInvalidInput, role)
	}

	if _, err := col.InsertOne(ctx, p); err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert %s profile: %w", role, err)
	}
	return nil
}

func findProfile(ctx context.Context, col *mongo.Collection, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := col.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
