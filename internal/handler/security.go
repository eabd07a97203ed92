package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/xenking/toybox-checkout/internal/domain/auth"
)

// Identity is the authenticated buyer attached to a request. SessionID is
// the token hash, which doubles as the checkout session key for the
// idempotency guard: resubmissions from the same client carry the same
// token and therefore the same session.
type Identity struct {
	BuyerID   int64
	SessionID string
}

type identityKey struct{}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Security authenticates requests via HMAC-SHA256 hashed bearer tokens.
type Security struct {
	tokens auth.Repository
	pepper []byte
}

// NewSecurity creates a Security middleware with the given token repository
// and HMAC pepper.
func NewSecurity(tokens auth.Repository, pepper []byte) *Security {
	return &Security{tokens: tokens, pepper: pepper}
}

// Require wraps next with bearer token authentication. The token is hashed
// with the server pepper, looked up, and compared in constant time; on
// success the buyer identity is stored in the request context.
func (s *Security) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		hash := auth.HashToken(raw, s.pepper)
		tok, err := s.tokens.FindByHash(r.Context(), hash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded.
		stored, err := hex.DecodeString(tok.Hash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		computed, _ := hex.DecodeString(hash)
		if subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{
			BuyerID:   tok.BuyerID,
			SessionID: tok.Hash,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
