// Package ledgertest provides an in-memory Gateway for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/peterson-htn252/HTN252/internal/ledger"
)

// Transfer records one submission the fake accepted.
type Transfer struct {
	Sender      string
	Destination string
	Drops       int64
	Memos       []ledger.Memo
}

// Fake is an in-memory ledger. Failures are scripted through FailSubmit
// and Unreachable; call counts let tests assert that rejected operations
// never reached the ledger.
type Fake struct {
	mu sync.Mutex

	balances map[string]int64

	FailSubmit  error
	Unreachable bool

	SubmitCalls  int
	BalanceCalls int
	Transfers    []Transfer

	seq int
}

var _ ledger.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{balances: make(map[string]int64)}
}

func (f *Fake) SetBalance(address string, drops int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = drops
}

func (f *Fake) Balance(address string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address]
}

func (f *Fake) SubmitTransfer(ctx context.Context, sender ledger.Credential, destination string, drops int64, memos []ledger.Memo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SubmitCalls++
	if f.FailSubmit != nil {
		return "", &ledger.SubmissionError{Err: f.FailSubmit}
	}
	if !sender.Complete() {
		return "", &ledger.SubmissionError{Err: ledger.ErrMissingKeys}
	}

	f.balances[sender.Address] -= drops
	f.balances[destination] += drops
	f.Transfers = append(f.Transfers, Transfer{
		Sender:      sender.Address,
		Destination: destination,
		Drops:       drops,
		Memos:       memos,
	})

	f.seq++
	return fmt.Sprintf("FAKE-TX-%04d", f.seq), nil
}

func (f *Fake) Issue(ctx context.Context, destination string, drops int64, memos []ledger.Memo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SubmitCalls++
	if f.FailSubmit != nil {
		return "", &ledger.SubmissionError{Err: f.FailSubmit}
	}
	f.balances[destination] += drops

	f.seq++
	return fmt.Sprintf("FAKE-TX-%04d", f.seq), nil
}

func (f *Fake) GetBalance(ctx context.Context, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.BalanceCalls++
	if f.Unreachable {
		return 0, ledger.ErrUnreachable
	}
	return f.balances[address], nil
}
