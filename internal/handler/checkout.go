package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/toybox-checkout/internal/domain/order"
)

// Checkout runs the checkout transaction for the buyer's current cart.
// A resubmission of an already-completed checkout returns the previously
// created order with 200 instead of 201.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	result, err := h.checkout.Checkout(r.Context(), id.BuyerID, id.SessionID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Resubmitted {
		status = http.StatusOK
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		encOrder(e, result.Order)
	})
}

func encOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("subtotal")
	encDecimal(e, o.Subtotal)
	e.FieldStart("discount_percentage")
	encDecimal(e, o.DiscountPercentage)
	e.FieldStart("discount_amount")
	encDecimal(e, o.DiscountAmount)
	e.FieldStart("total")
	encDecimal(e, o.DiscountedTotal)
	if o.DiscountLocation != "" {
		e.FieldStart("discount_location")
		e.Str(o.DiscountLocation)
	}
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		encDecimal(e, l.UnitPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
