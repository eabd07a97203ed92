package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/toybox-checkout/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, buyer_id, subtotal, discount_percentage, discount_amount,
			discounted_total, COALESCE(discount_location, ''), status, created_at
		FROM orders WHERE id = $1`

	listOrdersByBuyerSQL = `SELECT id, buyer_id, subtotal, discount_percentage, discount_amount,
			discounted_total, COALESCE(discount_location, ''), status, created_at
		FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`

	listOrderLinesSQL = `SELECT product_id, quantity, unit_price
		FROM order_lines WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements the read-only order.Repository backed by
// PostgreSQL. Orders are written by the checkout transaction in
// CheckoutStore, never here.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	lineRows, err := r.pool.Query(ctx, listOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %d: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(lineRows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %d: %w", id, err)
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first, without lines.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByBuyerSQL, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %d: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.Subtotal, &o.DiscountPercentage, &o.DiscountAmount,
		&o.DiscountedTotal, &o.DiscountLocation, &o.Status, &o.CreatedAt)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice)
	return l, err
}
