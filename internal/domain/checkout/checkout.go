package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/toybox-checkout/internal/domain/buyer"
	"github.com/xenking/toybox-checkout/internal/domain/catalog"
	"github.com/xenking/toybox-checkout/internal/domain/order"
)

var (
	// ErrEmptyCart is returned when checkout is attempted with no cart lines
	// and no prior order recorded for the session.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientBalance is returned when the buyer cannot afford the
	// discounted total. The cart is left intact.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransactionConflict is returned when the atomic commit could not be
	// applied (lock timeout, serialization failure). The caller should retry
	// the whole checkout; cart and stock state are unchanged.
	ErrTransactionConflict = errors.New("transaction conflict, retry checkout")
)

// Tx exposes the storage operations available inside a single checkout
// transaction. Every method sees and mutates state that commits or rolls
// back as one unit.
type Tx interface {
	// LockBuyer acquires an exclusive lock on the buyer row and returns the
	// current balance and assigned location.
	LockBuyer(ctx context.Context, id int64) (*buyer.Buyer, error)
	// LockProducts acquires exclusive locks on the product rows in ascending
	// id order and returns their current state. Products missing from the
	// result have been deleted from the catalog.
	LockProducts(ctx context.Context, ids []int64) ([]catalog.Product, error)
	// DecrementStock subtracts quantity from the product's quantity on hand.
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	// CreateOrder persists the order and its lines, filling o.ID and
	// o.CreatedAt.
	CreateOrder(ctx context.Context, o *order.Order) error
	// DebitBalance subtracts amount from the buyer's balance.
	DebitBalance(ctx context.Context, buyerID int64, amount decimal.Decimal) error
}

// TxStore runs a function within one atomic transaction. An error from fn or
// from commit rolls everything back; serialization failures and lock
// timeouts surface as ErrTransactionConflict.
type TxStore interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// IdempotencyStore remembers the most recently created order per checkout
// session so resubmission of an already-completed checkout is redirected to
// the existing order instead of failing on the emptied cart.
type IdempotencyStore interface {
	// LastOrder returns the recorded order id for the session, or ok=false.
	LastOrder(ctx context.Context, sessionID string) (orderID int64, ok bool, err error)
	// Record overwrites the recorded order id for the session.
	Record(ctx context.Context, sessionID string, orderID int64) error
}

// Result is the outcome of a successful checkout.
type Result struct {
	Order *order.Order
	// Resubmitted is true when the idempotency guard short-circuited a
	// duplicate submission and Order refers to the previously created order.
	Resubmitted bool
}
