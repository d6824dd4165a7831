package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hana270/PFE-PROJET/internal/domain"
)

type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	AvailableStock *int   `json:"available_stock,omitempty"`
	AffectedItems  *int   `json:"affected_items,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps domain errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var stock *domain.InsufficientStockError

	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "invalid_request", verr.Error())
	case errors.As(err, &stock):
		available := stock.Available
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:          err.Error(),
			Code:           "insufficient_stock",
			AvailableStock: &available,
		})
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyVerified):
		respondError(w, http.StatusConflict, "already_verified", err.Error())
	case errors.Is(err, domain.ErrWrongCode):
		respondError(w, http.StatusBadRequest, "invalid_code", err.Error())
	case errors.Is(err, domain.ErrCodeExpired):
		respondError(w, http.StatusGone, "code_expired", err.Error())
	case errors.Is(err, domain.ErrTooManyAttempts):
		respondError(w, http.StatusTooManyRequests, "too_many_attempts", err.Error())
	case errors.Is(err, domain.ErrTooManyResends):
		respondError(w, http.StatusTooManyRequests, "too_many_resends", err.Error())
	case errors.Is(err, domain.ErrCatalogUnavailable):
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
