package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a non-positive quantity is submitted.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Line is one buyer's pending selection of a product. The price is a snapshot
// taken when the line was created and is advisory only: checkout recomputes
// totals from the catalog price current at commit time.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// Subtotal returns quantity times the snapshot unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Store holds per-buyer cart state. Implementations are expected to be
// ephemeral key-value stores with a bounded lifetime (TTL); the cart is never
// authoritative for stock or balance.
type Store interface {
	// Get returns the buyer's cart lines in insertion order.
	// A missing cart is an empty cart, not an error.
	Get(ctx context.Context, buyerID int64) ([]Line, error)
	// Put replaces the buyer's cart lines and refreshes the TTL.
	Put(ctx context.Context, buyerID int64, lines []Line) error
	// Clear removes the buyer's cart entirely.
	Clear(ctx context.Context, buyerID int64) error
}
