package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// LedgerRepository implements ports.LedgerRepository on top of MongoDB
// multi-document transactions.
type LedgerRepository struct {
	client *mongo.Client
	users  *mongo.Collection
	txs    *mongo.Collection
	gens   *mongo.Collection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(client *mongo.Client, db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{
		client: client,
		users:  db.Collection(collectionUsers),
		txs:    db.Collection(collectionTransactions),
		gens:   db.Collection(collectionGenerations),
	}
}

// WithinUserScope runs fn inside a transaction that first claims the user
// document. Two scopes for the same user both write lock_seq, so one of them
// hits a write conflict and is retried by the driver after the other commits.
func (r *LedgerRepository) WithinUserScope(ctx context.Context, userID string, fn func(context.Context, ports.LedgerTx) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := &ledgerTx{repo: r, userID: userID}
		if err := tx.claim(sc); err != nil {
			return nil, err
		}
		return nil, fn(sc, tx)
	}, txnOpts)
	return err
}

func (r *LedgerRepository) Balance(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		Credits int64 `bson:"credits"`
	}
	opts := options.FindOne().SetProjection(bson.M{"credits": 1})
	if err := r.users.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return doc.Credits, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, page, limit int) ([]*domain.CreditTransaction, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID}
	total, err := r.txs.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.txs.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find transactions: %w", err)
	}
	items := []*domain.CreditTransaction{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode transactions: %w", err)
	}
	return items, total, nil
}

func (r *LedgerRepository) Freeze(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"frozen": true, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("freeze user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ledgerTx is the LedgerTx handed to a scope callback. All calls must use the
// session context passed to the callback.
type ledgerTx struct {
	repo    *LedgerRepository
	userID  string
	account domain.Account
}

func (t *ledgerTx) claim(ctx context.Context) error {
	var mu mongoUser
	err := t.repo.users.FindOneAndUpdate(ctx,
		bson.M{"_id": t.userID},
		bson.M{"$inc": bson.M{"lock_seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("claim ledger scope: %w", err)
	}
	t.account = domain.Account{
		UserID:  mu.ID,
		Balance: mu.Credits,
		Tier:    domain.Tier(mu.Tier),
		Frozen:  mu.Frozen,
	}
	return nil
}

func (t *ledgerTx) Account(context.Context) (*domain.Account, error) {
	acct := t.account
	return &acct, nil
}

// Adjust moves the balance with a conditional update so a debit can never
// drive it below zero, then appends the transaction row.
func (t *ledgerTx) Adjust(ctx context.Context, delta int64, meta domain.TransactionMeta) (*domain.AdjustResult, error) {
	filter := bson.M{"_id": t.userID}
	if delta < 0 {
		filter["credits"] = bson.M{"$gte": -delta}
	}
	now := time.Now().UTC()

	var mu mongoUser
	err := t.repo.users.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc": bson.M{"credits": delta},
			"$set": bson.M{"updated_at": now},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: balance %d, debit %d", domain.ErrInsufficientFunds, t.account.Balance, -delta)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	row := domain.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       t.userID,
		Amount:       delta,
		Type:         meta.Type,
		Description:  meta.Description,
		GenerationID: meta.GenerationID,
		BalanceAfter: mu.Credits,
		CreatedAt:    now,
	}
	if _, err := t.repo.txs.InsertOne(ctx, row); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	t.account.Balance = mu.Credits
	return &domain.AdjustResult{NewBalance: mu.Credits, TransactionID: row.ID}, nil
}

func (t *ledgerTx) CreateGeneration(ctx context.Context, g *domain.Generation) error {
	if _, err := t.repo.gens.InsertOne(ctx, g); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (t *ledgerTx) SumTransactions(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "user_id", Value: t.userID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cur, err := t.repo.txs.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	defer cur.Close(ctx)

	var out struct {
		Total int64 `bson:"total"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&out); err != nil {
			return 0, fmt.Errorf("decode sum: %w", err)
		}
	}
	return out.Total, cur.Err()
}

func (t *ledgerTx) MarkRefunded(ctx context.Context, generationID string) (bool, error) {
	res, err := t.repo.gens.UpdateOne(ctx,
		bson.M{"_id": generationID, "user_id": t.userID, "refunded": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"refunded": true}},
	)
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	n, err := t.repo.gens.CountDocuments(ctx, bson.M{"_id": generationID, "user_id": t.userID})
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}
	if n == 0 {
		return false, domain.ErrGenerationNotFound
	}
	return false, nil
}
