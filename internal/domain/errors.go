package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCartNotFound        = errors.New("cart not found")
	ErrItemNotFound        = errors.New("item not found in cart")
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrAlreadyVerified = errors.New("transaction already verified")
	ErrCodeExpired     = errors.New("verification code has expired")
	ErrTooManyAttempts = errors.New("too many verification attempts")
	ErrWrongCode       = errors.New("verification code is incorrect")
	ErrTooManyResends  = errors.New("resend limit reached")

	ErrCatalogUnavailable = errors.New("catalog service unavailable")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports the quantity the catalog can actually
// satisfy so the caller can offer to clamp.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

// PartialMergeError is a non-fatal signal: the merge (or bulk add)
// completed, but some lines were clamped or skipped. The primary cart is
// still valid and returned alongside this error.
type PartialMergeError struct {
	FirstItem     *CartItem
	AffectedItems int
}

func (e *PartialMergeError) Error() string {
	return fmt.Sprintf("%d items could not be fully merged", e.AffectedItems)
}
