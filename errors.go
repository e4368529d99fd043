package tokengate

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every failure a caller can
// hit is distinguishable by kind so a fronting layer can render a specific
// message rather than a generic one.
var (
	// General errors
	ErrNotFound        = errors.New("tokengate: not found")
	ErrInvalidArgument = errors.New("tokengate: invalid argument")
	ErrUnauthorized    = errors.New("tokengate: unauthorized")

	// Tier errors
	ErrTierNotFound = errors.New("tokengate: tier not found")
	ErrTierInactive = errors.New("tokengate: tier is inactive")

	// Purchase errors
	ErrInsufficientPayment = errors.New("tokengate: insufficient payment")
	ErrPaymentFailed       = errors.New("tokengate: payment transfer failed")
	ErrRefundFailed        = errors.New("tokengate: refund transfer failed")
	ErrOverflow            = errors.New("tokengate: arithmetic overflow")

	// Holding errors
	ErrNoBalance       = errors.New("tokengate: no balance to revoke")
	ErrHoldingNotFound = errors.New("tokengate: holding not found")

	// Identity link errors
	ErrLinkNotFound = errors.New("tokengate: identity link not found")

	// Receipt errors
	ErrReceiptNotFound = errors.New("tokengate: receipt not found")

	// Store errors
	ErrStoreClosed       = errors.New("tokengate: store is closed")
	ErrTransactionFailed = errors.New("tokengate: transaction failed")
	ErrMigrationFailed   = errors.New("tokengate: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tokengate: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTierNotFound) ||
		errors.Is(err, ErrHoldingNotFound) ||
		errors.Is(err, ErrLinkNotFound) ||
		errors.Is(err, ErrReceiptNotFound)
}

// IsAuthError returns true if the error is an authority failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsPaymentError returns true if the error relates to settlement transfers.
// Refund failures are compensated inside the gate before being surfaced, so
// callers seeing one know no pass was minted.
func IsPaymentError(err error) bool {
	return errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrPaymentFailed) ||
		errors.Is(err, ErrRefundFailed)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried by the caller. The gate itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrPaymentFailed)
}
