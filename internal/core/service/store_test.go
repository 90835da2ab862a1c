package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// memDB is an in-memory store for the service tests. Ledger scopes take a
// per-user mutex and stage their writes, which are applied only when the
// scope function returns nil.
type memDB struct {
	mu    sync.Mutex
	users map[string]*domain.User
	locks map[string]*sync.Mutex
	txs   []*domain.CreditTransaction
	gens  map[string]*domain.Generation
	chars map[string]*domain.Character

	// markRefundFailures makes the next n MarkRefunded calls fail.
	markRefundFailures int
	scopes             int
}

func newMemDB() *memDB {
	return &memDB{
		users: make(map[string]*domain.User),
		locks: make(map[string]*sync.Mutex),
		gens:  make(map[string]*domain.Generation),
		chars: make(map[string]*domain.Character),
	}
}

func (db *memDB) addUser(id string, credits int64, tier domain.Tier) *domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &domain.User{ID: id, Username: id, Email: id + "@example.com", Role: domain.RoleMember, Tier: tier, Credits: credits}
	db.users[id] = u
	db.locks[id] = &sync.Mutex{}
	if credits != 0 {
		db.txs = append(db.txs, &domain.CreditTransaction{
			ID: "seed-" + id, UserID: id, Amount: credits, Type: domain.TxGrant, BalanceAfter: credits,
		})
	}
	return u
}

func (db *memDB) balance(id string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id].Credits
}

func (db *memDB) transactions(userID string, typ domain.TransactionType) []*domain.CreditTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*domain.CreditTransaction
	for _, tx := range db.txs {
		if tx.UserID == userID && tx.Type == typ {
			out = append(out, tx)
		}
	}
	return out
}

func (db *memDB) generation(id string) *domain.Generation {
	db.mu.Lock()
	defer db.mu.Unlock()
	if g, ok := db.gens[id]; ok {
		c := *g
		return &c
	}
	return nil
}

func (db *memDB) generationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.gens)
}

func (db *memDB) putGeneration(g *domain.Generation) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := *g
	db.gens[g.ID] = &c
}

// --- LedgerRepository ---

type memLedger struct{ db *memDB }

type memTx struct {
	db       *memDB
	userID   string
	balance  int64
	tier     domain.Tier
	frozen   bool
	txs      []*domain.CreditTransaction
	gens     []*domain.Generation
	refunded []string
}

func (l *memLedger) WithinUserScope(ctx context.Context, userID string, fn func(context.Context, ports.LedgerTx) error) error {
	l.db.mu.Lock()
	lock, ok := l.db.locks[userID]
	l.db.scopes++
	l.db.mu.Unlock()
	if !ok {
		return domain.ErrUserNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	l.db.mu.Lock()
	u := l.db.users[userID]
	tx := &memTx{db: l.db, userID: userID, balance: u.Credits, tier: u.Tier, frozen: u.Frozen}
	l.db.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u.Credits = tx.balance
	l.db.txs = append(l.db.txs, tx.txs...)
	for _, g := range tx.gens {
		l.db.gens[g.ID] = g
	}
	for _, id := range tx.refunded {
		l.db.gens[id].Refunded = true
	}
	return nil
}

func (l *memLedger) Balance(_ context.Context, userID string) (int64, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return u.Credits, nil
}

func (l *memLedger) ListTransactions(_ context.Context, userID string, page, limit int) ([]*domain.CreditTransaction, int64, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	var all []*domain.CreditTransaction
	for i := len(l.db.txs) - 1; i >= 0; i-- {
		if l.db.txs[i].UserID == userID {
			all = append(all, l.db.txs[i])
		}
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (l *memLedger) Freeze(_ context.Context, userID string) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	u, ok := l.db.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Frozen = true
	return nil
}

func (t *memTx) Account(context.Context) (*domain.Account, error) {
	return &domain.Account{UserID: t.userID, Balance: t.balance, Tier: t.tier, Frozen: t.frozen}, nil
}

func (t *memTx) Adjust(_ context.Context, delta int64, meta domain.TransactionMeta) (*domain.AdjustResult, error) {
	if t.balance+delta < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	t.balance += delta
	id := meta.GenerationID + "-" + string(meta.Type)
	t.txs = append(t.txs, &domain.CreditTransaction{
		ID:           id,
		UserID:       t.userID,
		Amount:       delta,
		Type:         meta.Type,
		Description:  meta.Description,
		GenerationID: meta.GenerationID,
		BalanceAfter: t.balance,
		CreatedAt:    time.Now(),
	})
	return &domain.AdjustResult{NewBalance: t.balance, TransactionID: id}, nil
}

func (t *memTx) CreateGeneration(_ context.Context, g *domain.Generation) error {
	c := *g
	t.gens = append(t.gens, &c)
	return nil
}

func (t *memTx) SumTransactions(context.Context) (int64, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	var sum int64
	for _, tx := range t.db.txs {
		if tx.UserID == t.userID {
			sum += tx.Amount
		}
	}
	for _, tx := range t.txs {
		sum += tx.Amount
	}
	return sum, nil
}

func (t *memTx) MarkRefunded(_ context.Context, generationID string) (bool, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.markRefundFailures > 0 {
		t.db.markRefundFailures--
		return false, errors.New("write conflict")
	}
	g, ok := t.db.gens[generationID]
	if !ok {
		return false, domain.ErrGenerationNotFound
	}
	if g.Refunded {
		return false, nil
	}
	for _, id := range t.refunded {
		if id == generationID {
			return false, nil
		}
	}
	t.refunded = append(t.refunded, generationID)
	return true, nil
}

// --- GenerationRepository ---

type memGenerations struct{ db *memDB }

func (r *memGenerations) FindByID(_ context.Context, id string) (*domain.Generation, error) {
	if g := r.db.generation(id); g != nil {
		return g, nil
	}
	return nil, domain.ErrGenerationNotFound
}

func (r *memGenerations) UpdateStatus(_ context.Context, id string, u domain.StatusUpdate) (*domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.gens[id]
	if !ok {
		return nil, domain.ErrGenerationNotFound
	}
	g := *stored
	if _, err := g.Apply(u, time.Now().UTC()); err != nil {
		return nil, err
	}
	*stored = g
	return &g, nil
}

func (r *memGenerations) ListByUser(_ context.Context, f ports.GenerationFilter) ([]*domain.Generation, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []*domain.Generation
	for _, g := range r.db.gens {
		if g.UserID != f.UserID || (f.Type != "" && g.Type != f.Type) || (f.Status != "" && g.Status != f.Status) {
			continue
		}
		c := *g
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memGenerations) CountByUser(ctx context.Context, userID string) (int64, error) {
	_, n, err := r.ListByUser(ctx, ports.GenerationFilter{UserID: userID, Page: 1, Limit: 1})
	return n, err
}

func (r *memGenerations) ListByStatus(_ context.Context, status domain.GenerationStatus, olderThan time.Time) ([]*domain.Generation, error) {
	return r.filter(func(g *domain.Generation) bool {
		return g.Status == status && g.UpdatedAt.Before(olderThan)
	}), nil
}

func (r *memGenerations) ListUnrefundedFailures(context.Context) ([]*domain.Generation, error) {
	return r.filter(func(g *domain.Generation) bool {
		return g.Status == domain.StatusFailed && !g.Refunded && g.CreditsCharged > 0
	}), nil
}

func (r *memGenerations) filter(keep func(*domain.Generation) bool) []*domain.Generation {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*domain.Generation
	for _, g := range r.db.gens {
		if keep(g) {
			c := *g
			out = append(out, &c)
		}
	}
	return out
}

// --- CharacterRepository ---

type memCharacters struct{ db *memDB }

func (r *memCharacters) Create(_ context.Context, c *domain.Character) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *c
	r.db.chars[c.ID] = &cp
	return nil
}

func (r *memCharacters) FindByID(_ context.Context, id, ownerID string) (*domain.Character, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chars[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrCharacterNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCharacters) FindByIDs(_ context.Context, ids []string) (map[string]*domain.Character, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make(map[string]*domain.Character)
	for _, id := range ids {
		if c, ok := r.db.chars[id]; ok {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *memCharacters) ListByOwner(_ context.Context, ownerID string) ([]*domain.Character, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*domain.Character{}
	for _, c := range r.db.chars {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCharacters) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	items, err := r.ListByOwner(ctx, ownerID)
	return int64(len(items)), err
}

func (r *memCharacters) Delete(_ context.Context, id, ownerID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chars[id]
	if !ok || c.OwnerID != ownerID {
		return domain.ErrCharacterNotFound
	}
	delete(r.db.chars, id)
	return nil
}

// --- UserRepository ---

type memUsers struct{ db *memDB }

func (r *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	cp := *u
	cp.Credits = 0
	r.db.users[u.ID] = &cp
	r.db.locks[u.ID] = &sync.Mutex{}
	out := cp
	return &out, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// --- Collaborators ---

type stubBackend struct {
	invokeFn func(ctx context.Context, req ports.BackendRequest) (*ports.BackendResult, error)

	mu       sync.Mutex
	requests []ports.BackendRequest
}

func (b *stubBackend) Invoke(ctx context.Context, req ports.BackendRequest) (*ports.BackendResult, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if b.invokeFn != nil {
		return b.invokeFn(ctx, req)
	}
	if req.Type == domain.GenerationVideo {
		return &ports.BackendResult{Status: domain.StatusProcessing, JobHandle: "job-" + req.GenerationID}, nil
	}
	return &ports.BackendResult{Status: domain.StatusCompleted, ResultURL: "https://cdn.example.com/" + req.GenerationID + ".png"}, nil
}

func (b *stubBackend) Poll(context.Context, string) (*ports.BackendResult, error) {
	return nil, domain.ErrBackend
}

type recordingTracker struct {
	mu   sync.Mutex
	jobs []ports.TrackedJob
}

func (t *recordingTracker) Track(job ports.TrackedJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, job)
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
	err  error
}

func (m *memIdempotency) Reserve(_ context.Context, userID, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	k := userID + ":" + key
	if id, ok := m.keys[k]; ok {
		return id, false, nil
	}
	m.keys[k] = ""
	return "", true, nil
}

func (m *memIdempotency) Complete(_ context.Context, userID, key, generationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[userID+":"+key] = generationID
	return nil
}

func (m *memIdempotency) Release(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, userID+":"+key)
	return nil
}
