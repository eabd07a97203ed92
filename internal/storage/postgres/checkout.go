package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/toybox-checkout/internal/domain/buyer"
	"github.com/xenking/toybox-checkout/internal/domain/catalog"
	"github.com/xenking/toybox-checkout/internal/domain/checkout"
	"github.com/xenking/toybox-checkout/internal/domain/order"
)

const (
	lockBuyerSQL = `SELECT id, username, balance, COALESCE(location_slug, ''), created_at
		FROM buyers WHERE id = $1 FOR UPDATE`

	// ORDER BY id keeps lock acquisition deterministic across concurrent
	// checkouts that share products.
	lockProductsSQL = `SELECT id, name, unit_price, stock_quantity, is_active, created_at
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (buyer_id, subtotal, discount_percentage, discount_amount,
			discounted_total, discount_location, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	debitBalanceSQL = `UPDATE buyers SET balance = balance - $2 WHERE id = $1`
)

var _ checkout.TxStore = (*CheckoutStore)(nil)

// CheckoutStore implements checkout.TxStore backed by PostgreSQL. Each
// checkout runs in one transaction; the row locks taken by LockBuyer and
// LockProducts are held until commit or rollback.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// WithinTx runs fn inside a single transaction, rolling back on any error.
// Serialization failures, deadlocks, and lock timeouts surface as
// checkout.ErrTransactionConflict so callers can retry from scratch.
func (s *CheckoutStore) WithinTx(ctx context.Context, fn func(tx checkout.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapTxError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return mapTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapTxError(err)
	}
	return nil
}

// mapTxError converts retryable PostgreSQL failures into
// checkout.ErrTransactionConflict and passes everything else through.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return checkout.ErrTransactionConflict
		}
	}
	return err
}

type checkoutTx struct {
	tx pgx.Tx
}

func (t *checkoutTx) LockBuyer(ctx context.Context, id int64) (*buyer.Buyer, error) {
	rows, err := t.tx.Query(ctx, lockBuyerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("locking buyer %d: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBuyer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, buyer.ErrNotFound
		}
		return nil, fmt.Errorf("locking buyer %d: %w", id, err)
	}
	return &b, nil
}

func (t *checkoutTx) LockProducts(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	rows, err := t.tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (t *checkoutTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if _, err := t.tx.Exec(ctx, decrementStockSQL, productID, quantity); err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", productID, err)
	}
	return nil
}

func (t *checkoutTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.BuyerID, o.Subtotal, o.DiscountPercentage, o.DiscountAmount,
		o.DiscountedTotal, o.DiscountLocation, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for _, l := range o.Lines {
		if _, err := t.tx.Exec(ctx, insertOrderLineSQL, o.ID, l.ProductID, l.Quantity, l.UnitPrice); err != nil {
			return fmt.Errorf("inserting line for order %d: %w", o.ID, err)
		}
	}
	return nil
}

func (t *checkoutTx) DebitBalance(ctx context.Context, buyerID int64, amount decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, debitBalanceSQL, buyerID, amount); err != nil {
		return fmt.Errorf("debiting buyer %d: %w", buyerID, err)
	}
	return nil
}
