package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/toybox-checkout/internal/domain/buyer"
)

const (
	getBuyerByIDSQL = `SELECT id, username, balance, COALESCE(location_slug, ''), created_at
		FROM buyers WHERE id = $1`

	creditBalanceSQL = `UPDATE buyers SET balance = balance + $2 WHERE id = $1
		RETURNING id, username, balance, COALESCE(location_slug, ''), created_at`
)

var _ buyer.Repository = (*BuyerRepository)(nil)

// BuyerRepository implements buyer.Repository backed by PostgreSQL.
type BuyerRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerRepository returns a BuyerRepository that uses the given pool.
func NewBuyerRepository(pool *pgxpool.Pool) *BuyerRepository {
	return &BuyerRepository{pool: pool}
}

// GetByID returns a single buyer by its identifier.
func (r *BuyerRepository) GetByID(ctx context.Context, id int64) (*buyer.Buyer, error) {
	rows, err := r.pool.Query(ctx, getBuyerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting buyer %d: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBuyer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, buyer.ErrNotFound
		}
		return nil, fmt.Errorf("getting buyer %d: %w", id, err)
	}
	return &b, nil
}

// CreditBalance adds amount to the buyer's prepaid balance and returns the
// updated buyer.
func (r *BuyerRepository) CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) (*buyer.Buyer, error) {
	rows, err := r.pool.Query(ctx, creditBalanceSQL, id, amount)
	if err != nil {
		return nil, fmt.Errorf("crediting buyer %d: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBuyer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, buyer.ErrNotFound
		}
		return nil, fmt.Errorf("crediting buyer %d: %w", id, err)
	}
	return &b, nil
}

func scanBuyer(row pgx.CollectableRow) (buyer.Buyer, error) {
	var b buyer.Buyer
	err := row.Scan(&b.ID, &b.Username, &b.Balance, &b.LocationSlug, &b.CreatedAt)
	return b, err
}
