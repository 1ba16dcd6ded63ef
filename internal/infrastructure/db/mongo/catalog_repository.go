package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
)

const collectionServices = "services"

type CatalogRepository struct {
	col *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{col: db.Collection(collectionServices)}
}

func (r *CatalogRepository) FindService(ctx context.Context, id string) (*domain.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var svc domain.Service
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&svc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// Seed upserts catalog entries; used to bootstrap development databases.
func (r *CatalogRepository) Seed(ctx context.Context, services []domain.Service) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	for _, svc := range services {
		_, err := r.col.ReplaceOne(ctx, bson.M{"_id": svc.ID}, svc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("seed service %s: %w", svc.ID, err)
		}
	}
	return nil
}
