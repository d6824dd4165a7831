package domain

import (
	"encoding/json"
	"time"
)

// VerificationStatus is the payment-verification state machine. No
// transition moves backward; VERIFIED and REJECTED are terminal.
type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "PENDING"
	VerificationCodeIssued VerificationStatus = "CODE_ISSUED"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationRejected   VerificationStatus = "REJECTED"
)

func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// String representation (for logging)
func (s VerificationStatus) String() string {
	return string(s)
}

// CanTransition reports whether the state machine allows moving from s
// to next.
func (s VerificationStatus) CanTransition(next VerificationStatus) bool {
	switch s {
	case VerificationPending:
		return next == VerificationCodeIssued
	case VerificationCodeIssued:
		return next == VerificationVerified || next == VerificationRejected
	default:
		return false
	}
}

// PaymentVerification is one checkout attempt: a single-use code with an
// expiry window, capped attempt and resend counters, and the full
// pending checkout payload needed to build the order once verified.
// Never reused across transactions.
type PaymentVerification struct {
	TransactionID  string
	Status         VerificationStatus
	Code           string
	ExpiresAt      time.Time
	Verified       bool
	VerifiedAt     *time.Time
	Attempts       int
	ResendCount    int
	Email          string
	CardMasked     string
	CardholderName string
	Amount         float64
	SettlementRef  string
	Pending        json.RawMessage // marshalled PendingCheckout
	CreatedAt      time.Time
}

// PendingCheckout is everything verify needs to materialize the order:
// who is buying, where it ships, and the cart snapshot at initiate time.
type PendingCheckout struct {
	AccountID      string       `json:"account_id,omitempty"`
	SessionID      string       `json:"session_id,omitempty"`
	CartID         string       `json:"cart_id,omitempty"`
	Email          string       `json:"email"`
	OrderReference string       `json:"order_reference,omitempty"`
	Delivery       DeliveryInfo `json:"delivery"`
	Items          []CartItem   `json:"items,omitempty"`
}

type DeliveryInfo struct {
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Comments   string `json:"comments,omitempty"`
}
