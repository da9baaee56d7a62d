package ledger

import (
	"context"
	"errors"
	"fmt"
)

// NativeCurrency is the ledger's native token symbol.
const NativeCurrency = "AID"

// DropsPerToken is the number of base units in one native token.
const DropsPerToken int64 = 1_000_000

// ErrUnreachable indicates the ledger node could not answer a balance query.
var ErrUnreachable = errors.New("ledger unreachable")

// Memo is an arbitrary key/value attached to a ledger transaction.
type Memo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SubmissionError wraps a failed transfer submission. A submission that
// returned no transaction id counts as failed even when the underlying
// call reported no error.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Gateway is the boundary to the external distributed ledger. Amounts are
// in drops (the smallest ledger unit). Implementations must never retry a
// submission on their own; the failure mode does not distinguish
// "not submitted" from "submitted but response lost".
type Gateway interface {
	// SubmitTransfer moves drops from the sender's wallet to the
	// destination address and returns the ledger transaction hash.
	SubmitTransfer(ctx context.Context, sender Credential, destination string, drops int64, memos []Memo) (string, error)

	// Issue mints drops to the destination address. Used for donation
	// on-ramping on dev networks.
	Issue(ctx context.Context, destination string, drops int64, memos []Memo) (string, error)

	// GetBalance returns the current balance of an address in drops, or
	// ErrUnreachable when the node cannot answer.
	GetBalance(ctx context.Context, address string) (int64, error)
}
