package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

// AddToCart merges {product_id, quantity} into the buyer's cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	productID, quantity, ok := decodeCartItem(w, r)
	if !ok {
		return
	}

	if err := h.carts.Add(r.Context(), id.BuyerID, productID, quantity); err != nil {
		mapDomainError(w, r, err)
		return
	}
	h.writeCart(w, r, id.BuyerID, http.StatusCreated)
}

// UpdateCartLine replaces the quantity of a cart line. A quantity below 1
// removes the line.
func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	quantity, ok := decodeQuantity(w, r)
	if !ok {
		return
	}

	if err := h.carts.Update(r.Context(), id.BuyerID, productID, quantity); err != nil {
		mapDomainError(w, r, err)
		return
	}
	h.writeCart(w, r, id.BuyerID, http.StatusOK)
}

// RemoveFromCart deletes a cart line. Removing an absent line succeeds.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.carts.Remove(r.Context(), id.BuyerID, productID); err != nil {
		mapDomainError(w, r, err)
		return
	}
	h.writeCart(w, r, id.BuyerID, http.StatusOK)
}

// ViewCart lists the cart lines with per-line subtotals and the advisory
// total computed from snapshot prices.
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	h.writeCart(w, r, id.BuyerID, http.StatusOK)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, buyerID int64, status int) {
	views, total, err := h.carts.List(r.Context(), buyerID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, v := range views {
			e.ObjStart()
			e.FieldStart("product_id")
			e.Int64(v.ProductID)
			e.FieldStart("product_name")
			e.Str(v.ProductName)
			e.FieldStart("quantity")
			e.Int(v.Quantity)
			e.FieldStart("unit_price")
			encDecimal(e, v.UnitPrice)
			e.FieldStart("subtotal")
			encDecimal(e, v.Subtotal)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("total")
		encDecimal(e, total)
		e.ObjEnd()
	})
}

// decodeCartItem reads {product_id, quantity} from the request body.
func decodeCartItem(w http.ResponseWriter, r *http.Request) (productID int64, quantity int, ok bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return 0, 0, false
	}

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			productID, err = d.Int64()
			return err
		case "quantity":
			quantity, err = d.Int()
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, 0, false
	}
	return productID, quantity, true
}

// decodeQuantity reads {quantity} from the request body.
func decodeQuantity(w http.ResponseWriter, r *http.Request) (quantity int, ok bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return 0, false
	}

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			quantity, err = d.Int()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, false
	}
	return quantity, true
}
