package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListLocations returns the discount locations buyers can be assigned to,
// for display on the storefront.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locations.List(r.Context())
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, l := range locations {
			e.ObjStart()
			e.FieldStart("slug")
			e.Str(l.Slug)
			e.FieldStart("display_name")
			e.Str(l.DisplayName)
			e.FieldStart("discount_percentage")
			encDecimal(e, l.Percentage)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}
