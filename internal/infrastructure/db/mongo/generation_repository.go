package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// maxStatusCAS bounds the compare-and-set loop of UpdateStatus.
const maxStatusCAS = 5

type GenerationRepository struct {
	col *mongo.Collection
}

func NewGenerationRepository(db *mongo.Database) *GenerationRepository {
	return &GenerationRepository{col: db.Collection(collectionGenerations)}
}

func (r *GenerationRepository) FindByID(ctx context.Context, id string) (*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var g domain.Generation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGenerationNotFound
		}
		return nil, err
	}
	return &g, nil
}

// UpdateStatus reads the record, applies the transition in memory and writes
// it back only if the stored status is still the one it read.
func (r *GenerationRepository) UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) (*domain.Generation, error) {
	for attempt := 0; attempt < maxStatusCAS; attempt++ {
		g, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := g.Status

		changed, err := g.Apply(u, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if !changed {
			return g, nil
		}

		wctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		res, err := r.col.UpdateOne(wctx,
			bson.M{"_id": id, "status": prev},
			bson.M{"$set": statusFields(g)},
		)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("update generation status: %w", err)
		}
		if res.MatchedCount == 1 {
			return g, nil
		}
	}
	return nil, fmt.Errorf("update generation %s: status changed concurrently", id)
}

func statusFields(g *domain.Generation) bson.M {
	return bson.M{
		"status":         g.Status,
		"result_url":     g.ResultURL,
		"job_handle":     g.JobHandle,
		"failure_reason": g.FailureReason,
		"updated_at":     g.UpdatedAt,
	}
}

// ListByUser returns one page of generations ordered by created_at desc, _id desc.
func (r *GenerationRepository) ListByUser(ctx context.Context, f ports.GenerationFilter) ([]*domain.Generation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := listFilter(f)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	return r.find(ctx, filter, opts, total)
}

func (r *GenerationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (r *GenerationRepository) ListByStatus(ctx context.Context, status domain.GenerationStatus, olderThan time.Time) ([]*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"status": status, "updated_at": bson.M{"$lt": olderThan}}
	gens, _, err := r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}), 0)
	return gens, err
}

func (r *GenerationRepository) ListUnrefundedFailures(ctx context.Context) ([]*domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"status":          domain.StatusFailed,
		"refunded":        bson.M{"$ne": true},
		"credits_charged": bson.M{"$gt": 0},
	}
	gens, _, err := r.find(ctx, filter, options.Find(), 0)
	return gens, err
}

func (r *GenerationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, total int64) ([]*domain.Generation, int64, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	gens := []*domain.Generation{}
	if err := cur.All(ctx, &gens); err != nil {
		return nil, 0, err
	}
	return gens, total, nil
}

// listFilter builds the bson filter for ListByUser.
func listFilter(f ports.GenerationFilter) bson.M {
	filter := bson.M{"user_id": f.UserID}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}
