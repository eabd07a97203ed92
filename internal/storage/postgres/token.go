package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/toybox-checkout/internal/domain/auth"
)

const (
	getTokenByHashSQL = `SELECT buyer_id, token_hash FROM buyer_tokens WHERE token_hash = $1`

	insertTokenSQL = `INSERT INTO buyer_tokens (buyer_id, token_hash) VALUES ($1, $2)
		ON CONFLICT (token_hash) DO NOTHING`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository provides buyer token lookups backed by PostgreSQL.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByHash looks up a buyer token by its HMAC-SHA256 hash.
// Returns auth.ErrTokenNotFound when no matching token exists.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.Token, error) {
	var t auth.Token
	err := r.pool.QueryRow(ctx, getTokenByHashSQL, hash).Scan(&t.BuyerID, &t.Hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("finding token by hash: %w", err)
	}
	return &t, nil
}

// Insert stores a token hash for a buyer. Used by the seed tool.
func (r *TokenRepository) Insert(ctx context.Context, buyerID int64, hash string) error {
	if _, err := r.pool.Exec(ctx, insertTokenSQL, buyerID, hash); err != nil {
		return fmt.Errorf("inserting token for buyer %d: %w", buyerID, err)
	}
	return nil
}
