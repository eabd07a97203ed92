package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// AddBalance credits the buyer's prepaid balance. The amount must be a
// positive decimal string.
func (h *Handler) AddBalance(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	var amount decimal.Decimal
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "amount" {
			num, err := d.Num()
			if err != nil {
				return err
			}
			amount, err = decimal.NewFromString(num.String())
			return err
		}
		return d.Skip()
	}); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !amount.IsPositive() {
		writeError(w, http.StatusUnprocessableEntity, "amount must be greater than 0")
		return
	}

	b, err := h.buyers.CreditBalance(r.Context(), id.BuyerID, amount)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("balance")
		encDecimal(e, b.Balance)
		e.ObjEnd()
	})
}
