package repository

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	consultationCollectionName = "consultations"
)

// MongoConsultationRepository implements domain.ConsultationRepository using MongoDB
type MongoConsultationRepository struct {
	collection *mongo.Collection
}

// NewMongoConsultationRepository creates a new MongoDB repository
func NewMongoConsultationRepository(db *mongo.Database) *MongoConsultationRepository {
	collection := db.Collection(consultationCollectionName)

	// Create indexes for better query performance
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Index on user_id and created_at for the history list
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1}, // Descending for latest first
		},
	}
	_, _ = collection.Indexes().CreateOne(ctx, indexModel)

	return &MongoConsultationRepository{
		collection: collection,
	}
}

// Create stores a consultation
func (r *MongoConsultationRepository) Create(ctx context.Context, c *domain.Consultation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	// ULIDs sort by creation time
	if c.ID == "" {
		c.ID = ulid.MustNew(ulid.Timestamp(c.CreatedAt), rand.Reader).String()
	}
	if c.Commands == nil {
		c.Commands = []domain.PlanCommand{}
	}

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}
	return nil
}

// ListByUser retrieves the latest consultations of a user
func (r *MongoConsultationRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]*domain.Consultation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find consultations: %w", err)
	}
	defer cursor.Close(ctx)

	consultations := []*domain.Consultation{}
	if err := cursor.All(ctx, &consultations); err != nil {
		return nil, fmt.Errorf("failed to decode consultations: %w", err)
	}
	return consultations, nil
}

// DeleteByUser removes the whole history of a user
func (r *MongoConsultationRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete consultations: %w", err)
	}
	return nil
}

var _ domain.ConsultationRepository = (*MongoConsultationRepository)(nil)
