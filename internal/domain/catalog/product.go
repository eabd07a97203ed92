package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. The checkout
// engine reads name and price and mutates stock_quantity transactionally;
// everything else is owned by the catalog subsystem.
type Product struct {
	ID            int64
	Name          string
	UnitPrice     decimal.Decimal
	StockQuantity int
	IsActive      bool
	CreatedAt     time.Time
}

// Available reports whether the product can currently be added to a cart.
func (p Product) Available() bool {
	return p.IsActive && p.StockQuantity > 0
}

// UnavailableError indicates a product is inactive or has been removed from
// the catalog since being carted.
type UnavailableError struct {
	ProductID int64
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

// InsufficientStockError indicates the requested quantity exceeds the
// quantity on hand for a product.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
