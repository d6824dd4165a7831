package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	cartsvc "github.com/hana270/PFE-PROJET/internal/cart/service"
	"github.com/hana270/PFE-PROJET/internal/domain"
)

// CartAPI is what the cart handlers need from the cart service.
type CartAPI interface {
	GetCart(ctx context.Context, id cartsvc.Identity) (*domain.Cart, string, error)
	AddItem(ctx context.Context, id cartsvc.Identity, req cartsvc.ItemRequest) (*domain.CartItem, *domain.Cart, error)
	AddItems(ctx context.Context, id cartsvc.Identity, reqs []cartsvc.ItemRequest) ([]domain.CartItem, *domain.Cart, error)
	UpdateQuantity(ctx context.Context, id cartsvc.Identity, itemID string, quantity int) (*domain.CartItem, *domain.Cart, error)
	RemoveItem(ctx context.Context, id cartsvc.Identity, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context, id cartsvc.Identity) (*domain.Cart, error)
	SetNotificationEmail(ctx context.Context, id cartsvc.Identity, email string) (*domain.Cart, error)
	Migrate(ctx context.Context, accountID, sessionID string) (*domain.Cart, error)
	CheckSessionCart(ctx context.Context, sessionID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts CartAPI
}

func NewCartHandler(carts CartAPI) *CartHandler {
	return &CartHandler{carts: carts}
}

func identityFrom(r *http.Request) cartsvc.Identity {
	return cartsvc.Identity{
		AccountID: accountIDFrom(r.Context()),
		SessionID: r.Header.Get(HeaderSessionID),
	}
}

type itemAndCart struct {
	Item *domain.CartItem `json:"item"`
	Cart *domain.Cart     `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	cart, token, err := h.carts.GetCart(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Anonymous shoppers learn their session token from the response
	// header, never from the body.
	if id.AccountID == "" && token != "" {
		w.Header().Set(HeaderSessionID, token)
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, cart, err := h.carts.AddItem(r.Context(), identityFrom(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, itemAndCart{Item: item, Cart: cart})
}

func (h *CartHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	var reqs []cartsvc.ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items, cart, err := h.carts.AddItems(r.Context(), identityFrom(r), reqs)
	var pm *domain.PartialMergeError
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]interface{}{"items": items, "cart": cart})
	case errors.As(err, &pm):
		affected := pm.AffectedItems
		respondJSON(w, http.StatusPartialContent, map[string]interface{}{
			"items":          items,
			"cart":           cart,
			"affected_items": affected,
		})
	default:
		respondServiceError(w, err)
	}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, cart, err := h.carts.UpdateQuantity(r.Context(), identityFrom(r), itemID, req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, itemAndCart{Item: item, Cart: cart})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Clear(r.Context(), identityFrom(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *CartHandler) SetEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.SetNotificationEmail(r.Context(), identityFrom(r), req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// Migrate folds the anonymous session cart into the caller's account
// cart at login.
func (h *CartHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFrom(r.Context())
	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "X-Session-ID header is required")
		return
	}

	cart, err := h.carts.Migrate(r.Context(), accountID, sessionID)
	var pm *domain.PartialMergeError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, cart)
	case errors.As(err, &pm):
		affected := pm.AffectedItems
		respondJSON(w, http.StatusPartialContent, map[string]interface{}{
			"cart":           cart,
			"affected_items": affected,
		})
	default:
		respondServiceError(w, err)
	}
}

// CheckSession reports whether a session cart exists, without creating
// one as GetCart would.
func (h *CartHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(HeaderSessionID)

	cart, err := h.carts.CheckSessionCart(r.Context(), sessionID)
	if errors.Is(err, domain.ErrCartNotFound) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"exists": true, "items": len(cart.Items)})
}
