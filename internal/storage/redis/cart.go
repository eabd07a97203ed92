package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/toybox-checkout/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store as one JSON blob per buyer with a TTL.
// Writes refresh the TTL, so an actively edited cart never expires mid-shop.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore returns a CartStore with the given cart lifetime.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(buyerID int64) string {
	return "cart:" + strconv.FormatInt(buyerID, 10)
}

// Get returns the buyer's cart lines. A missing key is an empty cart.
func (s *CartStore) Get(ctx context.Context, buyerID int64) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, cartKey(buyerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return lines, nil
}

// Put replaces the buyer's cart lines and refreshes the TTL.
func (s *CartStore) Put(ctx context.Context, buyerID int64, lines []cart.Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(buyerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// Clear removes the buyer's cart. Clearing an absent cart is a no-op.
func (s *CartStore) Clear(ctx context.Context, buyerID int64) error {
	if err := s.client.Del(ctx, cartKey(buyerID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
