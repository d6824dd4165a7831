package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	paysvc "github.com/hana270/PFE-PROJET/internal/payments/service"
)

// PaymentAPI is what the payment handlers need from the payment engine.
type PaymentAPI interface {
	Initiate(ctx context.Context, req paysvc.InitiateRequest) (*paysvc.InitiateResult, error)
	Verify(ctx context.Context, transactionID, code string) (*paysvc.VerifyResult, error)
	Resend(ctx context.Context, transactionID string) (*paysvc.ResendResult, error)
}

type PaymentHandler struct {
	payments PaymentAPI
}

func NewPaymentHandler(payments PaymentAPI) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req paysvc.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// The authenticated account always wins over whatever the body says.
	if accountID := accountIDFrom(r.Context()); accountID != "" && req.Pending != nil {
		req.Pending.AccountID = accountID
	}

	result, err := h.payments.Initiate(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.TransactionID == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "transaction_id and code are required")
		return
	}

	result, err := h.payments.Verify(r.Context(), req.TransactionID, req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type resendRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *PaymentHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.TransactionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "transaction_id is required")
		return
	}

	result, err := h.payments.Resend(r.Context(), req.TransactionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
