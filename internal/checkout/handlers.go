package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backend-jersey/internal/cart"
	"github.com/noah-isme/backend-jersey/internal/common"
)

// Handler exposes checkout over HTTP.
type Handler struct {
	Svc *Service
}

// Checkout handles POST /api/v1/checkout. The cart is priced and
// snapshotted; no payment is taken.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err, "")
		return
	}
	out, err := h.Svc.Place(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if _, ok := common.AsAppError(err); !ok && errors.Is(err, cart.ErrInvalidInput) {
		err = common.BadRequest(err.Error(), err)
	}
	common.WriteError(w, err, "checkout failed")
}
