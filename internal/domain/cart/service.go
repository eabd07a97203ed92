package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/toybox-checkout/internal/domain/catalog"
)

// View is a cart line joined with current catalog data for display.
type View struct {
	Line
	ProductName string
	Subtotal    decimal.Decimal
}

// Service implements the cart operations exposed to the page layer. All stock
// checks here are courtesy checks against a point-in-time catalog read; the
// authoritative guard runs inside the checkout transaction.
type Service struct {
	store    Store
	products catalog.Repository
	now      func() time.Time
}

// NewService creates a cart Service over the given store and catalog.
func NewService(store Store, products catalog.Repository) *Service {
	return &Service{
		store:    store,
		products: products,
		now:      time.Now,
	}
}

// Add merges quantity into an existing line for the product or appends a new
// line. Repeated additions of the same product sum quantities rather than
// creating duplicate lines.
func (s *Service) Add(ctx context.Context, buyerID, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return &catalog.UnavailableError{ProductID: productID}
		}
		return errors.Wrap(err, "get product")
	}
	if !p.Available() {
		return &catalog.UnavailableError{ProductID: productID}
	}

	lines, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}

	existing := 0
	idx := -1
	for i, l := range lines {
		if l.ProductID == productID {
			existing = l.Quantity
			idx = i
			break
		}
	}

	if existing+quantity > p.StockQuantity {
		return &catalog.InsufficientStockError{
			ProductID: productID,
			Requested: existing + quantity,
			Available: p.StockQuantity,
		}
	}

	if idx >= 0 {
		lines[idx].Quantity += quantity
	} else {
		lines = append(lines, Line{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: p.UnitPrice,
			AddedAt:   s.now(),
		})
	}

	return errors.Wrap(s.store.Put(ctx, buyerID, lines), "put cart")
}

// Update replaces the quantity of an existing line. A quantity below 1
// removes the line.
func (s *Service) Update(ctx context.Context, buyerID, productID int64, quantity int) error {
	if quantity < 1 {
		return s.Remove(ctx, buyerID, productID)
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return &catalog.UnavailableError{ProductID: productID}
		}
		return errors.Wrap(err, "get product")
	}
	if !p.Available() {
		return &catalog.UnavailableError{ProductID: productID}
	}
	if quantity > p.StockQuantity {
		return &catalog.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: p.StockQuantity,
		}
	}

	lines, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}

	for i, l := range lines {
		if l.ProductID == productID {
			lines[i].Quantity = quantity
			return errors.Wrap(s.store.Put(ctx, buyerID, lines), "put cart")
		}
	}

	// Updating an absent line behaves like an add with the given quantity.
	lines = append(lines, Line{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: p.UnitPrice,
		AddedAt:   s.now(),
	})
	return errors.Wrap(s.store.Put(ctx, buyerID, lines), "put cart")
}

// Remove deletes the line for the product. Removing an absent line is a
// no-op success.
func (s *Service) Remove(ctx context.Context, buyerID, productID int64) error {
	lines, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}

	kept := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}
	if len(kept) == 0 {
		return errors.Wrap(s.store.Clear(ctx, buyerID), "clear cart")
	}
	return errors.Wrap(s.store.Put(ctx, buyerID, kept), "put cart")
}

// List returns the cart lines joined with current product names, plus the
// advisory total computed from snapshot prices.
func (s *Service) List(ctx context.Context, buyerID int64) ([]View, decimal.Decimal, error) {
	lines, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get cart")
	}

	views := make([]View, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		v := View{Line: l, Subtotal: l.Subtotal()}
		if p, err := s.products.GetByID(ctx, l.ProductID); err == nil {
			v.ProductName = p.Name
		}
		total = total.Add(v.Subtotal)
		views = append(views, v)
	}
	return views, total, nil
}

// Clear empties the buyer's cart. Called by a successful checkout.
func (s *Service) Clear(ctx context.Context, buyerID int64) error {
	return errors.Wrap(s.store.Clear(ctx, buyerID), "clear cart")
}
