// Package settlement moves value between a custodial ledger wallet and a
// recipient's off-ledger balance record. Every operation follows the same
// shape: authorize, validate the amount, check the cheap off-ledger balance,
// check the expensive on-ledger balance, open a pending audit row, submit
// the transfer, then settle the row and update the balance.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/models"
	"github.com/peterson-htn252/HTN252/internal/store"
)

// balanceAttempts bounds the optimistic-write retry loop.
const balanceAttempts = 3

// settlementNamespace seeds deterministic idempotency keys.
var settlementNamespace = uuid.MustParse("7f1cfa54-8d21-44a4-9f0e-1d2ab51c6c3e")

// Store is the slice of the balance ledger the engine needs.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetRecipient(ctx context.Context, recipientID string) (*models.Recipient, error)
	UpdateRecipientBalance(ctx context.Context, recipientID string, version int64, balance decimal.Decimal) error
	CreatePayout(ctx context.Context, p *models.Payout) error
	UpdatePayout(ctx context.Context, payoutID, status, txHash string) error
	CreateMovement(ctx context.Context, m *models.Movement) error
}

// Engine executes one balance-changing operation at a time from the
// caller's perspective. It holds no state of its own.
type Engine struct {
	store      Store
	gateway    ledger.Gateway
	rates      *ledger.Rates
	offRamp    string
	offRampTag int
}

func NewEngine(s Store, gw ledger.Gateway, rates *ledger.Rates, offRampAddress string, offRampTag int) *Engine {
	return &Engine{store: s, gateway: gw, rates: rates, offRamp: offRampAddress, offRampTag: offRampTag}
}

// Result reports a completed deposit or withdrawal.
type Result struct {
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Operation       string
	Amount          decimal.Decimal
	TxHash          string
	PayoutID        string
}

// RedeemResult reports a completed voucher redemption.
type RedeemResult struct {
	PayoutID         string       `json:"payout_id"`
	StoreCurrency    string       `json:"store_currency"`
	AmountMinor      int64        `json:"amount_minor"`
	Quote            ledger.Quote `json:"quote"`
	TxHash           string       `json:"tx_hash"`
	Status           string       `json:"status"`
	RecipientAddress string       `json:"recipient_address"`
	NewBalance       float64      `json:"new_balance"`
}

// Deposit transfers amount from the NGO wallet to the recipient's ledger
// address and increments the off-ledger balance.
func (e *Engine) Deposit(ctx context.Context, ngoID, recipientID string, amount decimal.Decimal, programID, memo string) (*Result, error) {
	amt, err := normalizeAmount(amount)
	if err != nil {
		return nil, err
	}

	rec, err := e.authorizedRecipient(ctx, ngoID, recipientID)
	if err != nil {
		return nil, err
	}

	ngo, err := e.store.GetAccount(ctx, ngoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	sender := credentialOf(ngo.PublicKey, ngo.PrivateKey, ngo.Address)
	if !sender.Complete() || rec.Address == "" {
		return nil, ErrWalletNotConfigured
	}

	if err := e.checkSourceFunds(ctx, sender.Address, amt); err != nil {
		return nil, err
	}

	if memo == "" {
		memo = "Aid distribution to " + rec.Name
	}
	key := idempotencyKey("deposit", ngoID, recipientID, amt, rec.Version)

	payout, err := e.openPayout(ctx, &models.Payout{
		NGOID:     ngo.AccountID,
		ProgramID: programID,
	}, amt, key)
	if err != nil {
		return nil, err
	}

	txHash, err := e.submitAndSettle(ctx, payout, sender, rec.Address, amt, memoSet(memo, key), "completed")
	if err != nil {
		return nil, err
	}

	if err := e.recordMovement(ctx, txHash, rec.Address, ngo.AccountID, "in", amt, programID, memo); err != nil {
		return nil, err
	}

	prev, newBal, err := e.applyBalanceChange(ctx, rec, amt)
	if err != nil {
		// The transfer happened and the payout and movement rows are
		// already written, so the operation stays auditable.
		return nil, err
	}

	return &Result{
		PreviousBalance: prev,
		NewBalance:      newBal,
		Operation:       "deposit",
		Amount:          amt,
		TxHash:          txHash,
		PayoutID:        payout.PayoutID,
	}, nil
}

// Withdraw transfers amount from the recipient's ledger wallet back to the
// NGO wallet and decrements the off-ledger balance. The recorded balance is
// checked before any ledger interaction.
func (e *Engine) Withdraw(ctx context.Context, ngoID, recipientID string, amount decimal.Decimal, programID, memo string) (*Result, error) {
	amt, err := normalizeAmount(amount)
	if err != nil {
		return nil, err
	}

	rec, err := e.authorizedRecipient(ctx, ngoID, recipientID)
	if err != nil {
		return nil, err
	}

	// Cheap local check first: no network call when the recorded balance
	// cannot cover the withdrawal.
	if rec.Balance.LessThan(amt) {
		return nil, &InsufficientBalanceError{Balance: rec.Balance}
	}

	ngo, err := e.store.GetAccount(ctx, ngoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	sender := credentialOf(rec.PublicKey, rec.PrivateKey, rec.Address)
	if !sender.Complete() || ngo.Address == "" {
		return nil, ErrWalletNotConfigured
	}

	if err := e.checkSourceFunds(ctx, sender.Address, amt); err != nil {
		return nil, err
	}

	if memo == "" {
		memo = "Withdrawal from " + rec.Name
	}
	key := idempotencyKey("withdraw", ngoID, recipientID, amt, rec.Version)

	payout, err := e.openPayout(ctx, &models.Payout{
		NGOID:     ngo.AccountID,
		ProgramID: programID,
	}, amt, key)
	if err != nil {
		return nil, err
	}

	txHash, err := e.submitAndSettle(ctx, payout, sender, ngo.Address, amt, memoSet(memo, key), "completed")
	if err != nil {
		return nil, err
	}

	if err := e.recordMovement(ctx, txHash, rec.Address, ngo.AccountID, "out", amt, programID, memo); err != nil {
		return nil, err
	}

	prev, newBal, err := e.applyBalanceChange(ctx, rec, amt.Neg())
	if err != nil {
		return nil, err
	}

	return &Result{
		PreviousBalance: prev,
		NewBalance:      newBal,
		Operation:       "withdraw",
		Amount:          amt,
		TxHash:          txHash,
		PayoutID:        payout.PayoutID,
	}, nil
}

// Redeem pays out a voucher: recipient wallet to the off-ramp sink, with the
// voucher, store, and program identifiers recorded for reconciliation.
func (e *Engine) Redeem(ctx context.Context, req models.RedeemRequest) (*RedeemResult, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.offRamp == "" {
		return nil, ErrOffRampNotConfigured
	}
	amt := decimal.NewFromInt(req.AmountMinor).Div(decimal.NewFromInt(100))

	rec, err := e.store.GetRecipient(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	if rec.Balance.LessThan(amt) {
		return nil, &InsufficientBalanceError{Balance: rec.Balance}
	}

	sender := credentialOf(rec.PublicKey, rec.PrivateKey, rec.Address)
	if !sender.Complete() {
		return nil, ErrWalletNotConfigured
	}

	if err := e.checkSourceFunds(ctx, sender.Address, amt); err != nil {
		return nil, err
	}

	quote, err := e.rates.NewQuote(ledger.NativeCurrency, req.Currency, req.AmountMinor)
	if err != nil {
		return nil, ErrInvalidAmount
	}

	key := idempotencyKey("redeem", req.StoreID, req.RecipientID, amt, rec.Version)
	memos := []ledger.Memo{
		{Type: "Redeem", Value: req.VoucherID},
		{Type: "Store", Value: req.StoreID},
		{Type: "Program", Value: req.ProgramID},
		{Type: "idempotency_key", Value: key},
	}
	if e.offRampTag != 0 {
		memos = append(memos, ledger.Memo{Type: "dest_tag", Value: strconv.Itoa(e.offRampTag)})
	}

	payout := &models.Payout{
		PayoutID:       uuid.NewString(),
		NGOID:          rec.NGOID,
		StoreID:        req.StoreID,
		ProgramID:      req.ProgramID,
		VoucherID:      req.VoucherID,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		QuoteID:        quote.QuoteID,
		IdempotencyKey: key,
		Status:         "pending",
	}
	if err := e.store.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	txHash, err := e.submitAndSettle(ctx, payout, sender, e.offRamp, amt, memos, "paid")
	if err != nil {
		return nil, err
	}

	drops, _ := e.rates.USDToDrops(amt)
	move := &models.Movement{
		TxHash:         txHash,
		Address:        rec.Address,
		NGOID:          rec.NGOID,
		Direction:      "out",
		DeliveredDrops: drops,
		Memos: map[string]string{
			"voucher_id": req.VoucherID,
			"store_id":   req.StoreID,
			"program_id": req.ProgramID,
		},
	}
	if err := e.store.CreateMovement(ctx, move); err != nil {
		return nil, err
	}

	_, newBal, err := e.applyBalanceChange(ctx, rec, amt.Neg())
	if err != nil {
		return nil, err
	}

	nb, _ := newBal.Float64()
	return &RedeemResult{
		PayoutID:         payout.PayoutID,
		StoreCurrency:    req.Currency,
		AmountMinor:      req.AmountMinor,
		Quote:            quote,
		TxHash:           txHash,
		Status:           "completed",
		RecipientAddress: rec.Address,
		NewBalance:       nb,
	}, nil
}

// --- internals ---

func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	// Truncate to cents, never round up: overpaying is worse than
	// underpaying by a fraction of a cent.
	amt := amount.Truncate(2)
	if amt.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return amt, nil
}

func (e *Engine) authorizedRecipient(ctx context.Context, ngoID, recipientID string) (*models.Recipient, error) {
	rec, err := e.store.GetRecipient(ctx, recipientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if rec.NGOID != ngoID {
		return nil, ErrNotAuthorized
	}
	return rec, nil
}

// checkSourceFunds verifies the on-ledger balance of the address funding a
// transfer covers the requested USD amount.
func (e *Engine) checkSourceFunds(ctx context.Context, address string, amt decimal.Decimal) error {
	drops, err := e.gateway.GetBalance(ctx, address)
	if err != nil {
		return &LedgerError{Err: err}
	}
	available, err := e.rates.DropsToUSD(drops)
	if err != nil {
		return &LedgerError{Err: err}
	}
	if available.LessThan(amt) {
		return &InsufficientSourceFundsError{Available: available, Required: amt}
	}
	return nil
}

// openPayout inserts the audit row in pending state before any ledger call,
// so a crash or a lost balance write never leaves a transfer unrecorded.
func (e *Engine) openPayout(ctx context.Context, payout *models.Payout, amt decimal.Decimal, idemKey string) (*models.Payout, error) {
	payout.PayoutID = uuid.NewString()
	payout.AmountMinor = amt.Mul(decimal.NewFromInt(100)).Truncate(0).IntPart()
	payout.Currency = "USD"
	payout.IdempotencyKey = idemKey
	payout.Status = "pending"
	if err := e.store.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// submitAndSettle runs the ledger transfer for an already-opened payout row
// and flips it to settledStatus with the transaction hash, or to failed.
func (e *Engine) submitAndSettle(ctx context.Context, payout *models.Payout, sender ledger.Credential, destination string, amt decimal.Decimal, memos []ledger.Memo, settledStatus string) (string, error) {
	txHash, err := e.transfer(ctx, sender, destination, amt, memos)
	if err != nil {
		// Best effort: the transfer error is the one to surface.
		_ = e.store.UpdatePayout(ctx, payout.PayoutID, "failed", "")
		payout.Status = "failed"
		return "", err
	}
	if err := e.store.UpdatePayout(ctx, payout.PayoutID, settledStatus, txHash); err != nil {
		return "", err
	}
	payout.Status = settledStatus
	payout.TxHash = txHash
	return txHash, nil
}

func (e *Engine) transfer(ctx context.Context, sender ledger.Credential, destination string, amt decimal.Decimal, memos []ledger.Memo) (string, error) {
	drops, err := e.rates.USDToDrops(amt)
	if err != nil {
		return "", ErrInvalidAmount
	}
	txHash, err := e.gateway.SubmitTransfer(ctx, sender, destination, drops, memos)
	if err != nil {
		return "", &LedgerError{Err: err}
	}
	if txHash == "" {
		// The SDK is not trusted to signal failure consistently.
		return "", &LedgerError{Err: errors.New("transfer returned no transaction hash")}
	}
	return txHash, nil
}

func (e *Engine) recordMovement(ctx context.Context, txHash, address, ngoID, direction string, amt decimal.Decimal, programID, memo string) error {
	drops, _ := e.rates.USDToDrops(amt)
	memos := map[string]string{"text": memo}
	if programID != "" {
		memos["program_id"] = programID
	}
	return e.store.CreateMovement(ctx, &models.Movement{
		TxHash:         txHash,
		Address:        address,
		NGOID:          ngoID,
		Direction:      direction,
		DeliveredDrops: drops,
		Memos:          memos,
	})
}

// applyBalanceChange performs the optimistic balance write, re-reading and
// retrying a bounded number of times when a concurrent write got there
// first. Returns the balance before and after the successful write.
func (e *Engine) applyBalanceChange(ctx context.Context, rec *models.Recipient, delta decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	cur := rec
	for attempt := 0; attempt < balanceAttempts; attempt++ {
		newBal := cur.Balance.Add(delta)
		if newBal.Sign() < 0 {
			// A concurrent spend drained the balance between our check and
			// the write. The ledger transfer already happened; surface the
			// conflict rather than recording a negative balance.
			return decimal.Zero, decimal.Zero, ErrConflict
		}
		err := e.store.UpdateRecipientBalance(ctx, cur.RecipientID, cur.Version, newBal)
		if err == nil {
			return cur.Balance, newBal, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return decimal.Zero, decimal.Zero, err
		}
		cur, err = e.store.GetRecipient(ctx, cur.RecipientID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	return decimal.Zero, decimal.Zero, ErrConflict
}

// idempotencyKey derives a deterministic id for one submission attempt, so
// a future retry policy can dedupe without a second transfer.
func idempotencyKey(op, partyID, recipientID string, amt decimal.Decimal, version int64) string {
	seed := fmt.Sprintf("%s:%s:%s:%s:%d", op, partyID, recipientID, amt.StringFixed(2), version)
	return uuid.NewSHA1(settlementNamespace, []byte(seed)).String()
}

func memoSet(text, idemKey string) []ledger.Memo {
	return []ledger.Memo{
		{Type: "text", Value: text},
		{Type: "idempotency_key", Value: idemKey},
	}
}

func credentialOf(publicKey, privateKey, address string) ledger.Credential {
	return ledger.Credential{PublicKey: publicKey, PrivateKey: privateKey, Address: address}
}
