package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrTokenNotFound is returned when no buyer token matches a hash.
var ErrTokenNotFound = errors.New("token not found")

// Token links a bearer token hash to a buyer account. The raw token is never
// stored; only its HMAC-SHA256 hash under a server-side pepper.
type Token struct {
	BuyerID int64
	Hash    string
}

// Repository provides lookup of buyer tokens by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Token, error)
}

// HashToken computes the hex HMAC-SHA256 of a raw token under the pepper.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
