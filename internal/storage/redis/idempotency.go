package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/toybox-checkout/internal/domain/checkout"
)

var _ checkout.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore remembers the last successfully created order per checkout
// session. Single slot per session, overwritten on each successful checkout.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore returns an IdempotencyStore with the given record
// lifetime. The TTL should be at least as long as the cart TTL so a stale
// resubmission can still find its order.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID + ":last_order"
}

// LastOrder returns the recorded order id for the session, if any.
func (s *IdempotencyStore) LastOrder(ctx context.Context, sessionID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get session order: %w", err)
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse session order id: %w", err)
	}
	return orderID, true, nil
}

// Record overwrites the recorded order id for the session.
func (s *IdempotencyStore) Record(ctx context.Context, sessionID string, orderID int64) error {
	err := s.client.Set(ctx, sessionKey(sessionID), strconv.FormatInt(orderID, 10), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set session order: %w", err)
	}
	return nil
}
