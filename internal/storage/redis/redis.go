// Package redis holds the ephemeral checkout state: per-buyer cart blobs and
// per-session idempotency records. Both are JSON values with a TTL; neither
// is ever authoritative for stock or balance.
package redis

import (
	"github.com/redis/go-redis/v9"
)

// NewClient creates a go-redis client for the given address.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}
