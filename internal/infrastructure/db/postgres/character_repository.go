package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/influencerlab/studio/internal/core/domain"
)

const characterColumns = `id, owner_id, name, description, gender, age, ethnicity, hair_color, hair_style, ` +
	`eye_color, body_type, art_style, created_at`

type CharacterRepository struct {
	db *sql.DB
}

func NewCharacterRepository(db *sql.DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func (r *CharacterRepository) Create(ctx context.Context, c *domain.Character) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO characters (`+characterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.OwnerID, c.Name, c.Description, c.Gender, c.Age, c.Ethnicity,
		c.HairColor, c.HairStyle, c.EyeColor, c.BodyType, c.ArtStyle, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	return nil
}

func (r *CharacterRepository) FindByID(ctx context.Context, id, ownerID string) (*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	c, err := scanCharacter(r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("find character: %w", err)
	}
	return c, nil
}

func (r *CharacterRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	items, err := r.query(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Character, len(items))
	for _, c := range items {
		out[c.ID] = c
	}
	return out, nil
}

func (r *CharacterRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Character, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.query(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
}

func (r *CharacterRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM characters WHERE owner_id = $1`, ownerID).Scan(&n)
	return n, err
}

func (r *CharacterRepository) Delete(ctx context.Context, id, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCharacterNotFound
	}
	return nil
}

func (r *CharacterRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Character, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	items := []*domain.Character{}
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func scanCharacter(row scanner) (*domain.Character, error) {
	var c domain.Character
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Gender, &c.Age, &c.Ethnicity,
		&c.HairColor, &c.HairStyle, &c.EyeColor, &c.BodyType, &c.ArtStyle, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
