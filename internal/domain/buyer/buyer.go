package buyer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested buyer does not exist.
var ErrNotFound = errors.New("buyer not found")

// Buyer is an authenticated account with a prepaid balance. The checkout
// engine reads the assigned location and mutates the balance transactionally;
// identity and authentication belong to the account subsystem.
type Buyer struct {
	ID           int64
	Username     string
	Balance      decimal.Decimal
	LocationSlug string
	CreatedAt    time.Time
}

// Repository defines persistence operations for buyer accounts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Buyer, error)
	// CreditBalance adds amount to the buyer's prepaid balance.
	CreditBalance(ctx context.Context, id int64, amount decimal.Decimal) (*Buyer, error)
}
