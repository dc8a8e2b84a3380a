package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const categoryColumns = `id, name, description, is_active, created_at, updated_at`

// CategoryRepository handles data access for categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListActive returns active categories ordered by id.
func (r *CategoryRepository) ListActive(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := r.db.SelectContext(ctx, &categories,
		`SELECT `+categoryColumns+` FROM categories WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// FindActiveByName looks up an active category case-insensitively.
func (r *CategoryRepository) FindActiveByName(ctx context.Context, name string) (*models.Category, error) {
	var c models.Category
	err := r.db.GetContext(ctx, &c,
		`SELECT `+categoryColumns+` FROM categories WHERE lower(name) = lower($1) AND is_active = TRUE LIMIT 1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Ensure returns the active category with the name, creating it when absent.
// The boolean reports whether a row was inserted. Concurrent imports racing
// on the same name converge on one row through the partial unique index.
func (r *CategoryRepository) Ensure(ctx context.Context, name string) (*models.Category, bool, error) {
	c, err := r.FindActiveByName(ctx, name)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, false, err
	}

	const insert = `INSERT INTO categories (name, is_active)
        VALUES ($1, TRUE)
        ON CONFLICT (lower(name)) WHERE is_active DO NOTHING
        RETURNING ` + categoryColumns

	var created models.Category
	err = r.db.GetContext(ctx, &created, insert, name)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// lost the race: another import inserted it first
	c, err = r.FindActiveByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return c, false, nil
}
