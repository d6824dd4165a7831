package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hana270/PFE-PROJET/internal/domain"
)

// OrderAPI is what the order handlers need from the order service.
type OrderAPI interface {
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Order, error)
}

type OrderHandler struct {
	orders OrderAPI
}

func NewOrderHandler(orders OrderAPI) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByAccount(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Orders belong to their account; no peeking at someone else's.
	if order.AccountID != "" && order.AccountID != accountIDFrom(r.Context()) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}
