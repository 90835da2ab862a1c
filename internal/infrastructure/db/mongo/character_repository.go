package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/influencerlab/studio/internal/core/domain"
)

type CharacterRepository struct {
	col *mongo.Collection
}

func NewCharacterRepository(db *mongo.Database) *CharacterRepository {
	return &CharacterRepository{col: db.Collection(collectionCharacters)}
}

func (r *CharacterRepository) Create(ctx context.Context, c *domain.Character) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

// FindByID retrieves a character owned by ownerID.
func (r *CharacterRepository) FindByID(ctx context.Context, id, ownerID string) (*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c domain.Character
	if err := r.col.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCharacterNotFound
		}
		return nil, err
	}
	return &c, nil
}

// FindByIDs resolves a batch of ids. Missing ids are absent from the map.
func (r *CharacterRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var found []*domain.Character
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.Character, len(found))
	for _, c := range found {
		out[c.ID] = c
	}
	return out, nil
}

func (r *CharacterRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	items := []*domain.Character{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *CharacterRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{"owner_id": ownerID})
}

// Delete removes the character document only; generations keep their
// character_id.
func (r *CharacterRepository) Delete(ctx context.Context, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrCharacterNotFound
	}
	return nil
}
