package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFirestoreCollection = "users"

// FirestoreStateRepository implements domain.StateRepository on Firestore,
// one document per Firebase uid in the users collection
type FirestoreStateRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStateRepository creates a new Firestore state repository
func NewFirestoreStateRepository(client *firestore.Client, collection string) *FirestoreStateRepository {
	if collection == "" {
		collection = defaultFirestoreCollection
	}
	return &FirestoreStateRepository{
		client:     client,
		collection: collection,
	}
}

// Save overwrites the user's document. A merge would keep plan entries
// and meals that were deleted since the previous sync.
func (r *FirestoreStateRepository) Save(ctx context.Context, userID string, state *domain.AppState) error {
	doc := *state
	doc.UserID = userID

	if _, err := r.doc(userID).Set(ctx, &doc); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load retrieves the user's document, nil when it does not exist
func (r *FirestoreStateRepository) Load(ctx context.Context, userID string) (*domain.AppState, error) {
	snap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var state domain.AppState
	if err := snap.DataTo(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

// doc addresses users/{uid}
func (r *FirestoreStateRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(userID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

var _ domain.StateRepository = (*FirestoreStateRepository)(nil)
