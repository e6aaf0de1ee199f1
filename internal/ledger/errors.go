package ledger

import "errors"

// Billing failure taxonomy. Admission-time failures reject the request with
// no side effects; settlement-time failures roll back the whole settlement
// transaction.
var (
	// ErrQuotaExpired rejects requests after the global quota expiry date.
	ErrQuotaExpired = errors.New("global quota expired")
	// ErrQuotaExceeded rejects requests once the global counter reaches the ceiling.
	ErrQuotaExceeded = errors.New("global quota exceeded")
	// ErrInsufficientFunds signals that neither the group nor the personal
	// pool covers the amount.
	ErrInsufficientFunds = errors.New("insufficient balance")
	// ErrUnpriceableModel signals a model with no price row and no usable defaults.
	ErrUnpriceableModel = errors.New("model price unavailable")
	// ErrBalanceOverflow flags a post-debit balance above the sanity ceiling.
	ErrBalanceOverflow = errors.New("balance exceeds maximum allowed value")
	// ErrAccountDeleted signals a debit attempt against a soft-deleted account.
	ErrAccountDeleted = errors.New("account is deleted and cannot be billed")
)
