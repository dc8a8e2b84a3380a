package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const productColumns = `p.id, p.name, p.description, p.price, p.sale_price, p.sku, p.artikul,
        p.catalog_number, p.stock, p.is_active, p.is_featured, p.category_id,
        c.name AS category_name, p.created_at, p.updated_at`

// ProductRepository handles data access for products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListActive returns every active product with its category name, ordered by id.
func (r *ProductRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + `
        FROM products p
        LEFT JOIN categories c ON c.id = p.category_id
        WHERE p.is_active = TRUE
        ORDER BY p.id`
	return r.list(ctx, q)
}

// ListInStock returns active products with positive stock.
func (r *ProductRepository) ListInStock(ctx context.Context) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + `
        FROM products p
        LEFT JOIN categories c ON c.id = p.category_id
        WHERE p.is_active = TRUE AND p.stock > 0
        ORDER BY p.id`
	return r.list(ctx, q)
}

func (r *ProductRepository) list(ctx context.Context, q string, args ...any) ([]models.Product, error) {
	stmt, err := r.db.PreparexContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	products := []models.Product{}
	if err := stmt.SelectContext(ctx, &products, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// FindIDByArtikul returns the lowest product id carrying the artikul.
func (r *ProductRepository) FindIDByArtikul(ctx context.Context, artikul string) (int64, error) {
	return r.findID(ctx, `SELECT id FROM products WHERE artikul = $1 ORDER BY id LIMIT 1`, artikul)
}

// FindIDBySKU returns the lowest product id carrying the sku.
func (r *ProductRepository) FindIDBySKU(ctx context.Context, sku string) (int64, error) {
	return r.findID(ctx, `SELECT id FROM products WHERE sku = $1 ORDER BY id LIMIT 1`, sku)
}

func (r *ProductRepository) findID(ctx context.Context, q, arg string) (int64, error) {
	var id int64
	if err := r.db.GetContext(ctx, &id, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, utils.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// Create inserts a product and fills in its id and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	const q = `INSERT INTO products (name, description, price, sale_price, sku, artikul,
            catalog_number, stock, is_active, is_featured, category_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, q,
		p.Name,
		p.Description,
		p.Price,
		p.SalePrice,
		p.SKU,
		p.Artikul,
		p.CatalogNumber,
		p.Stock,
		p.IsActive,
		p.IsFeatured,
		p.CategoryID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update applies a partial update. It reports false when no product has the id.
func (r *ProductRepository) Update(ctx context.Context, id int64, upd *models.ProductUpdate) (bool, error) {
	const q = `UPDATE products SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            price = COALESCE($4, price),
            sale_price = COALESCE($5, sale_price),
            sku = COALESCE($6, sku),
            artikul = COALESCE($7, artikul),
            catalog_number = COALESCE($8, catalog_number),
            stock = COALESCE($9, stock),
            is_active = COALESCE($10, is_active),
            category_id = COALESCE($11, category_id),
            updated_at = NOW()
        WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		id,
		upd.Name,
		upd.Description,
		upd.Price,
		upd.SalePrice,
		upd.SKU,
		upd.Artikul,
		upd.CatalogNumber,
		upd.Stock,
		upd.IsActive,
		upd.CategoryID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateOffer sets price, sale price and stock on every product with the
// artikul and returns how many rows changed.
func (r *ProductRepository) UpdateOffer(ctx context.Context, artikul string, upd *models.OfferUpdate) (int64, error) {
	const q = `UPDATE products
        SET price = $2, sale_price = $3, stock = $4, updated_at = NOW()
        WHERE artikul = $1`

	res, err := r.db.ExecContext(ctx, q, artikul, upd.Price, upd.SalePrice, upd.Stock)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
