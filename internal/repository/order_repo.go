package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sparesmarket/spares_api/internal/models"
)

// OrderRepository handles data access for orders and their items.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ListByStatus returns orders in any of the statuses, newest first.
// Customer columns are aliased into the nested Customer struct.
func (r *OrderRepository) ListByStatus(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	const q = `SELECT o.id, o.order_number, o.status, o.total_amount, o.currency, o.notes,
            o.customer_name AS "customer.name",
            o.customer_email AS "customer.email",
            o.customer_phone AS "customer.phone",
            o.customer_tax_id AS "customer.tax_id",
            o.customer_address AS "customer.address",
            o.created_at, o.updated_at
        FROM orders o
        WHERE o.status = ANY($1)
        ORDER BY o.created_at DESC, o.id DESC`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	orders := []models.Order{}
	if err := r.db.SelectContext(ctx, &orders, q, pq.Array(names)); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListItems returns the items of the given orders in line order.
func (r *OrderRepository) ListItems(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	const q = `SELECT id, order_id, product_id, name, sku, artikul, category_name,
            quantity, unit_price, line_total
        FROM order_items
        WHERE order_id = ANY($1)
        ORDER BY order_id, id`

	items := []models.OrderItem{}
	if len(orderIDs) == 0 {
		return items, nil
	}
	if err := r.db.SelectContext(ctx, &items, q, pq.Array(orderIDs)); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatusByNumber sets status and, when given, notes. It reports false
// when no order has the number.
func (r *OrderRepository) UpdateStatusByNumber(ctx context.Context, orderNumber string, status models.OrderStatus, notes *string) (bool, error) {
	const q = `UPDATE orders
        SET status = $2, notes = COALESCE($3, notes), updated_at = NOW()
        WHERE order_number = $1`

	res, err := r.db.ExecContext(ctx, q, orderNumber, string(status), notes)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
