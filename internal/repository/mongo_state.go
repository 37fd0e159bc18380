package repository

import (
	"context"
	"fmt"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	stateCollectionName = "user_states"
)

// MongoStateRepository implements domain.StateRepository using MongoDB.
// One document per user, keyed by the Firebase uid.
type MongoStateRepository struct {
	collection *mongo.Collection
}

// NewMongoStateRepository creates a new MongoDB state repository
func NewMongoStateRepository(db *mongo.Database) *MongoStateRepository {
	return &MongoStateRepository{
		collection: db.Collection(stateCollectionName),
	}
}

// Save replaces the user's document, creating it on first sync
func (r *MongoStateRepository) Save(ctx context.Context, userID string, state *domain.AppState) error {
	doc := *state
	doc.UserID = userID

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": userID}, &doc, opts); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load retrieves the user's document, nil when the user never synced
func (r *MongoStateRepository) Load(ctx context.Context, userID string) (*domain.AppState, error) {
	var state domain.AppState
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return &state, nil
}

// ListUserIDs returns the ids of every stored document
func (r *MongoStateRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := r.collection.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := id.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

var _ domain.StateRepository = (*MongoStateRepository)(nil)
