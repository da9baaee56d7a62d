package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrRecipientNotFound indicates the recipient id did not resolve.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrAccountNotFound indicates the NGO account id did not resolve.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotAuthorized indicates the recipient belongs to a different NGO
	// than the caller.
	ErrNotAuthorized = errors.New("recipient belongs to a different NGO")

	// ErrInvalidAmount indicates a non-positive or unparsable amount. Raised
	// before any balance or ledger interaction.
	ErrInvalidAmount = errors.New("amount must be a positive value")

	// ErrWalletNotConfigured indicates an account or recipient record is
	// missing wallet key material.
	ErrWalletNotConfigured = errors.New("wallet keys not properly configured")

	// ErrOffRampNotConfigured indicates no off-ramp deposit address is set.
	ErrOffRampNotConfigured = errors.New("off-ramp deposit address not configured")

	// ErrConflict indicates the balance kept changing under the operation
	// and the bounded retry gave up.
	ErrConflict = errors.New("balance changed concurrently")
)

// InsufficientBalanceError indicates the recorded off-ledger balance is
// below the requested withdrawal. Checked before any ledger call.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available $%s", e.Balance.StringFixed(2))
}

// InsufficientSourceFundsError indicates the on-ledger wallet funding the
// transfer holds less than the requested amount.
type InsufficientSourceFundsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientSourceFundsError) Error() string {
	return fmt.Sprintf("insufficient wallet funds: available $%s, required $%s",
		e.Available.StringFixed(2), e.Required.StringFixed(2))
}

// LedgerError indicates the external transfer call failed or the ledger
// could not be reached. Never retried automatically: the gateway cannot
// distinguish "not submitted" from "submitted but response lost".
type LedgerError struct {
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger gateway failure: %v", e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
