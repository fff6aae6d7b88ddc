package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the business error kinds onto HTTP statuses. Messages
// are specific enough to render to the end user as-is.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *errs.ValidationError
		notFound     *errs.NotFoundError
		invalidState *errs.InvalidStateError
		stock        *errs.InsufficientStockError
		conflict     *errs.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &invalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "status": invalidState.Status})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"sku":       stock.SKU,
			"available": stock.Available,
			"requested": stock.Requested,
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
