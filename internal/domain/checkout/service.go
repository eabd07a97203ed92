package checkout

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/toybox-checkout/internal/domain/cart"
	"github.com/xenking/toybox-checkout/internal/domain/catalog"
	"github.com/xenking/toybox-checkout/internal/domain/discount"
	"github.com/xenking/toybox-checkout/internal/domain/order"
)

// Service is the checkout orchestrator: it converts a buyer's cart into a
// durable order as one atomic transaction. Stock and balance never go
// negative under concurrent access, and duplicate submission of the same
// checkout is tolerated.
type Service struct {
	carts    cart.Store
	orders   order.Repository
	resolver discount.Resolver
	store    TxStore
	idem     IdempotencyStore
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	carts cart.Store,
	orders order.Repository,
	resolver discount.Resolver,
	store TxStore,
	idem IdempotencyStore,
) *Service {
	return &Service{
		carts:    carts,
		orders:   orders,
		resolver: resolver,
		store:    store,
		idem:     idem,
	}
}

// Checkout runs the full transaction for the buyer's current cart.
//
// Lock order is deterministic everywhere: the buyer row first, then product
// rows in ascending id. Concurrent checkouts from the same buyer serialize
// on the buyer lock; checkouts sharing products cannot deadlock because both
// acquire the overlap in the same order.
//
// On any failure the transaction rolls back and cart, stock, and balance are
// exactly as before the attempt. The cart and the idempotency record live
// outside the database transaction and are only touched after a successful
// commit.
func (s *Service) Checkout(ctx context.Context, buyerID int64, sessionID string) (*Result, error) {
	lines, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	// Idempotent resubmission: an empty cart plus a recorded order means a
	// prior attempt already succeeded and cleared the cart. Redirect to that
	// order instead of reporting an empty cart.
	if len(lines) == 0 {
		if orderID, ok, err := s.idem.LastOrder(ctx, sessionID); err == nil && ok {
			prev, err := s.orders.GetByID(ctx, orderID)
			if err != nil {
				return nil, errors.Wrap(err, "load previous order")
			}
			return &Result{Order: prev, Resubmitted: true}, nil
		}
		return nil, ErrEmptyCart
	}

	quantities := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, cart.ErrInvalidQuantity
		}
		if _, seen := quantities[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		quantities[l.ProductID] += l.Quantity
	}
	slices.Sort(ids)

	var o *order.Order
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		b, err := tx.LockBuyer(ctx, buyerID)
		if err != nil {
			return errors.Wrap(err, "lock buyer")
		}

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}

		byID := make(map[int64]catalog.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		// Re-read prices under lock: cart snapshots are advisory only.
		subtotal := decimal.Zero
		orderLines := make([]order.Line, 0, len(ids))
		for _, id := range ids {
			p, ok := byID[id]
			if !ok || !p.IsActive {
				return &catalog.UnavailableError{ProductID: id}
			}
			qty := quantities[id]
			subtotal = subtotal.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
			orderLines = append(orderLines, order.Line{
				ProductID: id,
				Quantity:  qty,
				UnitPrice: p.UnitPrice,
			})
		}

		quote, err := s.resolver.Resolve(ctx, b.LocationSlug, subtotal)
		if err != nil {
			return errors.Wrap(err, "resolve discount")
		}

		if b.Balance.LessThan(quote.Total) {
			return ErrInsufficientBalance
		}

		// Authoritative stock check and decrement, all lines or none.
		for _, id := range ids {
			p := byID[id]
			qty := quantities[id]
			if p.StockQuantity < qty {
				return &catalog.InsufficientStockError{
					ProductID: id,
					Requested: qty,
					Available: p.StockQuantity,
				}
			}
		}
		for _, id := range ids {
			if err := tx.DecrementStock(ctx, id, quantities[id]); err != nil {
				return errors.Wrapf(err, "decrement stock for product %d", id)
			}
		}

		o = &order.Order{
			BuyerID:            buyerID,
			Subtotal:           subtotal,
			DiscountPercentage: quote.Percentage,
			DiscountAmount:     quote.Amount,
			DiscountedTotal:    quote.Total,
			DiscountLocation:   quote.LocationSlug,
			Status:             order.StatusCompleted,
			Lines:              orderLines,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		return errors.Wrap(tx.DebitBalance(ctx, buyerID, quote.Total), "debit balance")
	})
	if err != nil {
		return nil, err
	}

	// Post-commit bookkeeping. Failures here cannot undo the order; the
	// idempotency guard and the authoritative stock checks cover the stale
	// cart left behind by a crash between commit and clear.
	lg := zctx.From(ctx)
	if err := s.carts.Clear(ctx, buyerID); err != nil {
		lg.Warn("Failed to clear cart after checkout",
			zap.Int64("buyer_id", buyerID), zap.Error(err))
	}
	if err := s.idem.Record(ctx, sessionID, o.ID); err != nil {
		lg.Warn("Failed to record order for session",
			zap.Int64("order_id", o.ID), zap.Error(err))
	}

	return &Result{Order: o}, nil
}
