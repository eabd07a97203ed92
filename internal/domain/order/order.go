package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status values for an order. Orders are created completed; cancellation is
// an administrative path that reverses stock and balance effects.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Order is the durable record of a completed purchase. Immutable after
// creation except for the administrative cancellation path.
type Order struct {
	ID                 int64
	BuyerID            int64
	Subtotal           decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountedTotal    decimal.Decimal
	DiscountLocation   string
	Status             string
	Lines              []Line
	CreatedAt          time.Time
}

// Line is one purchased item. UnitPrice freezes the catalog price at
// purchase time so later price changes do not alter historical orders.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Repository defines the read-only order access exposed to receipt rendering
// and order-history display. Order creation happens inside the checkout
// transaction, not here.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]Order, error)
}
