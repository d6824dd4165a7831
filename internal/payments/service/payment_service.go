package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/hana270/PFE-PROJET/internal/orders/repository"
)

const (
	// DefaultCodeTTL is the verification code validity window.
	DefaultCodeTTL = 10 * time.Minute

	maxAttempts = 3
	maxResends  = 3

	taxRate = 0.19
)

var emailPattern = regexp.MustCompile(`^[\w-.]+@([\w-]+\.)+[\w-]{2,4}$`)

// Orders is the slice of the order collaborator this engine needs:
// materialize an order once payment is verified, and price an initiate
// request against an existing order.
type Orders interface {
	Assemble(ctx context.Context, pending *domain.PendingCheckout) (*domain.Order, error)
	GetByReference(ctx context.Context, reference string) (*domain.Order, error)
}

// Notifier delivers codes and confirmations to the shopper.
type Notifier interface {
	VerificationCode(ctx context.Context, email, code string, expiresAt time.Time, amount float64, cardMasked string) error
	PaymentConfirmed(ctx context.Context, email, reference string, amount float64) error
}

type PaymentService struct {
	repo    repository.OrderRepository
	orders  Orders
	notify  Notifier
	codeTTL time.Duration
}

func NewPaymentService(repo repository.OrderRepository, orders Orders, notify Notifier, codeTTL time.Duration) *PaymentService {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	return &PaymentService{
		repo:    repo,
		orders:  orders,
		notify:  notify,
		codeTTL: codeTTL,
	}
}

// InitiateRequest carries the card details and the pending checkout
// snapshot. Card details are validated, masked and dropped; only the
// mask is ever stored.
type InitiateRequest struct {
	CardNumber     string                  `json:"card_number"`
	ExpiryMonth    string                  `json:"expiry_month"`
	ExpiryYear     string                  `json:"expiry_year"`
	CVV            string                  `json:"cvv"`
	CardholderName string                  `json:"cardholder_name"`
	Email          string                  `json:"email"`
	Pending        *domain.PendingCheckout `json:"pending"`
}

type InitiateResult struct {
	TransactionID string                    `json:"transaction_id"`
	Status        domain.VerificationStatus `json:"status"`
	Message       string                    `json:"message"`
	CardMasked    string                    `json:"card_masked"`
	Amount        float64                   `json:"amount"`
	ExpiresAt     time.Time                 `json:"expires_at"`
	Delivered     bool                      `json:"delivered"`
}

func (r InitiateRequest) validate() error {
	digits := strings.ReplaceAll(strings.ReplaceAll(r.CardNumber, " ", ""), "-", "")
	if !isDigits(digits) || len(digits) != 16 {
		return domain.Validationf("card number must be 16 digits")
	}
	if !isDigits(r.ExpiryMonth) || len(r.ExpiryMonth) != 2 {
		return domain.Validationf("expiry month must be 2 digits")
	}
	if !isDigits(r.ExpiryYear) || len(r.ExpiryYear) != 2 {
		return domain.Validationf("expiry year must be 2 digits")
	}
	if !isDigits(r.CVV) || len(r.CVV) != 3 {
		return domain.Validationf("cvv must be 3 digits")
	}
	if strings.TrimSpace(r.CardholderName) == "" {
		return domain.Validationf("cardholder name is required")
	}
	if !emailPattern.MatchString(r.Email) {
		return domain.Validationf("invalid email address")
	}
	if r.Pending == nil {
		return domain.Validationf("pending checkout is required")
	}
	return nil
}

// Initiate opens a verification transaction: validates the card, prices
// the checkout, issues a single-use code and sends it to the shopper.
// A delivery failure does not abort the transaction; the code is issued
// and the caller is told delivery is degraded.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	amount, err := s.priceCheckout(ctx, req.Pending)
	if err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	pendingJSON, err := json.Marshal(req.Pending)
	if err != nil {
		return nil, fmt.Errorf("marshal pending checkout: %w", err)
	}

	v := &domain.PaymentVerification{
		TransactionID:  uuid.NewString(),
		Status:         domain.VerificationPending,
		Code:           code,
		ExpiresAt:      time.Now().Add(s.codeTTL),
		Email:          req.Email,
		CardMasked:     maskCard(req.CardNumber),
		CardholderName: strings.TrimSpace(req.CardholderName),
		Amount:         amount,
		Pending:        pendingJSON,
		CreatedAt:      time.Now(),
	}

	if errSave := s.repo.SaveVerification(ctx, v); errSave != nil {
		return nil, errSave
	}

	delivered := true
	message := "verification code sent"
	if errSend := s.notify.VerificationCode(ctx, v.Email, code, v.ExpiresAt, amount, v.CardMasked); errSend != nil {
		log.Printf("transaction %s: code delivery failed: %v", v.TransactionID, errSend)
		delivered = false
		message = "verification code generated but could not be delivered, use resend"
	}

	v.Status = domain.VerificationCodeIssued
	if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
		return nil, errUp
	}

	return &InitiateResult{
		TransactionID: v.TransactionID,
		Status:        v.Status,
		Message:       message,
		CardMasked:    v.CardMasked,
		Amount:        amount,
		ExpiresAt:     v.ExpiresAt,
		Delivered:     delivered,
	}, nil
}

type VerifyResult struct {
	TransactionID string        `json:"transaction_id"`
	SettlementRef string        `json:"settlement_ref"`
	Order         *domain.Order `json:"order,omitempty"`
	VerifiedAt    time.Time     `json:"verified_at"`
}

// Verify checks a submitted code against the transaction. Expiry and the
// attempts cap move the transaction to REJECTED; a wrong code burns an
// attempt but leaves the transaction open.
func (s *PaymentService) Verify(ctx context.Context, transactionID, code string) (*VerifyResult, error) {
	v, err := s.repo.GetVerification(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if v.Verified {
		return nil, domain.ErrAlreadyVerified
	}

	if time.Now().After(v.ExpiresAt) {
		v.Status = domain.VerificationRejected
		if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
			return nil, errUp
		}
		return nil, domain.ErrCodeExpired
	}

	v.Attempts++
	if v.Attempts > maxAttempts {
		v.Status = domain.VerificationRejected
		if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
			return nil, errUp
		}
		return nil, domain.ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
			return nil, errUp
		}
		return nil, domain.ErrWrongCode
	}

	now := time.Now()
	v.Status = domain.VerificationVerified
	v.Verified = true
	v.VerifiedAt = &now
	v.SettlementRef = newSettlementRef()
	if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
		return nil, errUp
	}

	result := &VerifyResult{
		TransactionID: v.TransactionID,
		SettlementRef: v.SettlementRef,
		VerifiedAt:    now,
	}

	// The payment is settled; failing to build the order must not undo
	// it. Operators reconcile from the settlement reference.
	var pending domain.PendingCheckout
	if errJSON := json.Unmarshal(v.Pending, &pending); errJSON != nil {
		log.Printf("transaction %s: corrupt pending checkout: %v", v.TransactionID, errJSON)
	} else if order, errOrd := s.orders.Assemble(ctx, &pending); errOrd != nil {
		log.Printf("transaction %s: order assembly failed: %v", v.TransactionID, errOrd)
	} else {
		result.Order = order
		if errNotify := s.notify.PaymentConfirmed(ctx, v.Email, order.Reference, v.Amount); errNotify != nil {
			log.Printf("transaction %s: confirmation delivery failed: %v", v.TransactionID, errNotify)
		}
	}

	return result, nil
}

type ResendResult struct {
	TransactionID string    `json:"transaction_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	Delivered     bool      `json:"delivered"`
}

// Resend issues a fresh code, restarting the expiry window and the
// attempt counter. At most three resends per transaction.
func (s *PaymentService) Resend(ctx context.Context, transactionID string) (*ResendResult, error) {
	v, err := s.repo.GetVerification(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if v.Verified {
		return nil, domain.ErrAlreadyVerified
	}
	if v.ResendCount >= maxResends {
		return nil, domain.ErrTooManyResends
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	v.Code = code
	v.ExpiresAt = time.Now().Add(s.codeTTL)
	v.Attempts = 0
	v.ResendCount++
	v.Status = domain.VerificationCodeIssued
	if errUp := s.repo.UpdateVerification(ctx, v); errUp != nil {
		return nil, errUp
	}

	delivered := true
	if errSend := s.notify.VerificationCode(ctx, v.Email, code, v.ExpiresAt, v.Amount, v.CardMasked); errSend != nil {
		log.Printf("transaction %s: resend delivery failed: %v", v.TransactionID, errSend)
		delivered = false
	}

	return &ResendResult{
		TransactionID: v.TransactionID,
		ExpiresAt:     v.ExpiresAt,
		Delivered:     delivered,
	}, nil
}

// priceCheckout charges the order total when the checkout references an
// existing order, otherwise the cart snapshot with VAT applied.
func (s *PaymentService) priceCheckout(ctx context.Context, pending *domain.PendingCheckout) (float64, error) {
	if pending.OrderReference != "" {
		order, err := s.orders.GetByReference(ctx, pending.OrderReference)
		if err != nil {
			return 0, err
		}
		return order.GrandTotal, nil
	}

	if len(pending.Items) == 0 {
		return 0, domain.Validationf("cannot initiate payment for an empty cart")
	}

	var amount float64
	for _, item := range pending.Items {
		amount += item.EffectivePrice() * float64(item.Quantity)
	}
	return amount * (1 + taxRate), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// maskCard keeps the last four digits only, e.g. ****-****-****-4242.
func maskCard(number string) string {
	digits := strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
	return "****-****-****-" + digits[len(digits)-4:]
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func newSettlementRef() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("rand.Read: %v", err))
	}
	return "PAY-" + strings.ToUpper(hex.EncodeToString(buf))
}
