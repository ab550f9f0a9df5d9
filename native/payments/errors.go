package payments

import "errors"

// Error kinds surfaced verbatim to callers. Precise error identity is part of
// the settlement contract: reconciliation depends on distinguishing "already
// paid" from "expired" from "unauthorized".
var (
	ErrFeeTooHigh              = errors.New("payments: fee basis points cannot exceed 1000")
	ErrPaymentAlreadyProcessed = errors.New("payments: payment has already been processed")
	ErrPaymentExpired          = errors.New("payments: payment has expired")
	ErrUnauthorized            = errors.New("payments: unauthorized")
	ErrInvalidExpiry           = errors.New("payments: invalid expiry timestamp")
	ErrInvalidPaymentType      = errors.New("payments: invalid payment type")
	ErrTokenMintMismatch       = errors.New("payments: token mint mismatch")
	ErrPaymentAlreadyCancelled = errors.New("payments: payment has already been cancelled")
	ErrMathOverflow            = errors.New("payments: math overflow")
	ErrAddressOccupied         = errors.New("payments: derived address already occupied")

	ErrInvalidAmount     = errors.New("payments: amount must be positive")
	ErrInvalidName       = errors.New("payments: invalid merchant name")
	ErrInvalidMemo       = errors.New("payments: memo exceeds maximum length")
	ErrInvalidToken      = errors.New("payments: invalid token identifier")
	ErrMerchantNotFound  = errors.New("payments: merchant not found")
	ErrPaymentNotFound   = errors.New("payments: payment not found")
	ErrInsufficientFunds = errors.New("payments: insufficient funds")
	ErrAddressMismatch   = errors.New("payments: record does not match its derived address")
)
