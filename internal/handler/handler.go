package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/toybox-checkout/internal/domain/buyer"
	"github.com/xenking/toybox-checkout/internal/domain/cart"
	"github.com/xenking/toybox-checkout/internal/domain/catalog"
	"github.com/xenking/toybox-checkout/internal/domain/checkout"
	"github.com/xenking/toybox-checkout/internal/domain/discount"
	"github.com/xenking/toybox-checkout/internal/domain/order"
)

// CartService is the cart surface used by the HTTP layer.
type CartService interface {
	Add(ctx context.Context, buyerID, productID int64, quantity int) error
	Update(ctx context.Context, buyerID, productID int64, quantity int) error
	Remove(ctx context.Context, buyerID, productID int64) error
	List(ctx context.Context, buyerID int64) ([]cart.View, decimal.Decimal, error)
}

// CheckoutService is the checkout entry point used by the HTTP layer.
type CheckoutService interface {
	Checkout(ctx context.Context, buyerID int64, sessionID string) (*checkout.Result, error)
}

// Handler exposes the checkout engine and its read-only collaborator
// surfaces over HTTP, delegating business logic to the injected services.
type Handler struct {
	products  catalog.Repository
	locations discount.Repository
	orders    order.Repository
	buyers    buyer.Repository
	carts     CartService
	checkout  CheckoutService
	security  *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	locations discount.Repository,
	orders order.Repository,
	buyers buyer.Repository,
	carts CartService,
	checkoutSvc CheckoutService,
	security *Security,
) *Handler {
	return &Handler{
		products:  products,
		locations: locations,
		orders:    orders,
		buyers:    buyers,
		carts:     carts,
		checkout:  checkoutSvc,
		security:  security,
	}
}

// Routes registers all API routes on a new mux. Every route except the
// catalog reads requires an authenticated buyer.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/locations", h.ListLocations)

	auth := h.security.Require
	mux.Handle("GET /api/cart", auth(http.HandlerFunc(h.ViewCart)))
	mux.Handle("POST /api/cart/items", auth(http.HandlerFunc(h.AddToCart)))
	mux.Handle("PUT /api/cart/items/{id}", auth(http.HandlerFunc(h.UpdateCartLine)))
	mux.Handle("DELETE /api/cart/items/{id}", auth(http.HandlerFunc(h.RemoveFromCart)))
	mux.Handle("POST /api/checkout", auth(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/orders", auth(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", auth(http.HandlerFunc(h.GetOrder)))
	mux.Handle("POST /api/balance", auth(http.HandlerFunc(h.AddBalance)))

	return mux
}

// writeJSON encodes a response body built by fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

// encDecimal emits a decimal as a JSON number with 2 decimal places.
func encDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

// mapDomainError translates the checkout error taxonomy into HTTP responses.
// Unexpected errors are logged and reported as 500.
func mapDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *catalog.UnavailableError
		stock       *catalog.InsufficientStockError
	)
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusUnprocessableEntity, unavailable.Error())
	case errors.As(err, &stock):
		writeError(w, http.StatusConflict, stock.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkout.ErrTransactionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
