package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

// GetOrder returns one of the buyer's orders with its lines. Used by receipt
// rendering and the confirmation page.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	if o.BuyerID != id.BuyerID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encOrder(e, o)
	})
}

// ListOrders returns the buyer's order history, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	orders, err := h.orders.ListByBuyer(r.Context(), id.BuyerID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}
