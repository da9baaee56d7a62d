package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/ledger/ledgertest"
	"github.com/peterson-htn252/HTN252/internal/models"
	"github.com/peterson-htn252/HTN252/internal/settlement"
	"github.com/peterson-htn252/HTN252/internal/store"
)

// fakeStore is an in-memory settlement.Store.
type fakeStore struct {
	accounts   map[string]*models.Account
	recipients map[string]*models.Recipient
	payouts    []*models.Payout
	movements  []*models.Movement

	// beforeBalanceWrite runs before every balance update, letting tests
	// inject a concurrent writer.
	beforeBalanceWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   make(map[string]*models.Account),
		recipients: make(map[string]*models.Recipient),
	}
}

func (f *fakeStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) GetRecipient(ctx context.Context, recipientID string) (*models.Recipient, error) {
	r, ok := f.recipients[recipientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) UpdateRecipientBalance(ctx context.Context, recipientID string, version int64, balance decimal.Decimal) error {
	if f.beforeBalanceWrite != nil {
		f.beforeBalanceWrite()
	}
	r, ok := f.recipients[recipientID]
	if !ok {
		return store.ErrNotFound
	}
	if r.Version != version {
		return store.ErrConflict
	}
	r.Balance = balance
	r.Version++
	return nil
}

func (f *fakeStore) CreatePayout(ctx context.Context, p *models.Payout) error {
	f.payouts = append(f.payouts, p)
	return nil
}

func (f *fakeStore) UpdatePayout(ctx context.Context, payoutID, status, txHash string) error {
	for _, p := range f.payouts {
		if p.PayoutID == payoutID {
			p.Status = status
			if txHash != "" {
				p.TxHash = txHash
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CreateMovement(ctx context.Context, m *models.Movement) error {
	f.movements = append(f.movements, m)
	return nil
}

type fixture struct {
	store  *fakeStore
	gw     *ledgertest.Fake
	engine *settlement.Engine
	ngo    *models.Account
	rec    *models.Recipient
}

const offRampAddr = "w00ff4a"

// newFixture sets up an NGO and recipient, each with a generated wallet,
// at a $2-per-token rate.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	rates, err := ledger.NewRates(2.0)
	require.NoError(t, err)

	ngoCred, err := ledger.NewCredential()
	require.NoError(t, err)
	recCred, err := ledger.NewCredential()
	require.NoError(t, err)

	fs := newFakeStore()
	ngo := &models.Account{
		AccountID:   "ngo-1",
		AccountType: "NGO",
		Status:      "active",
		Name:        "Relief Root",
		PublicKey:   ngoCred.PublicKey,
		PrivateKey:  ngoCred.PrivateKey,
		Address:     ngoCred.Address,
	}
	rec := &models.Recipient{
		RecipientID: "rec-1",
		NGOID:       "ngo-1",
		Name:        "Amara",
		Status:      "active",
		Balance:     decimal.Zero,
		PublicKey:   recCred.PublicKey,
		PrivateKey:  recCred.PrivateKey,
		Address:     recCred.Address,
	}
	fs.accounts[ngo.AccountID] = ngo
	fs.recipients[rec.RecipientID] = rec

	gw := ledgertest.New()
	return &fixture{
		store:  fs,
		gw:     gw,
		engine: settlement.NewEngine(fs, gw, rates, offRampAddr, 0),
		ngo:    ngo,
		rec:    rec,
	}
}

// fund puts usd dollars on an address, at the fixture's $2/token rate.
func (fx *fixture) fund(address string, usd int64) {
	fx.gw.SetBalance(address, usd*ledger.DropsPerToken/2)
}

func TestDepositHappyPath(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)

	res, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(25), "", "")
	require.NoError(t, err)

	require.True(t, res.PreviousBalance.IsZero())
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(25)), "got %s", res.NewBalance)
	require.NotEmpty(t, res.TxHash)
	require.Equal(t, "deposit", res.Operation)

	require.Len(t, fx.store.payouts, 1)
	require.Len(t, fx.store.movements, 1)
	require.Equal(t, int64(2500), fx.store.payouts[0].AmountMinor)
	require.Equal(t, "completed", fx.store.payouts[0].Status)
	require.Equal(t, res.TxHash, fx.store.payouts[0].TxHash)
	require.Equal(t, "in", fx.store.movements[0].Direction)
	// $25 at $2/token is 12.5 tokens.
	require.Equal(t, int64(12_500_000), fx.store.movements[0].DeliveredDrops)

	require.True(t, fx.store.recipients["rec-1"].Balance.Equal(decimal.NewFromInt(25)))
}

func TestWithdrawRejectsInsufficientRecordedBalance(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(10)
	fx.fund(fx.rec.Address, 100)

	_, err := fx.engine.Withdraw(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(15), "", "")

	var insufficient *settlement.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Balance.Equal(decimal.NewFromInt(10)))

	// The cheap check must short-circuit before any ledger interaction.
	require.Zero(t, fx.gw.SubmitCalls)
	require.Zero(t, fx.gw.BalanceCalls)
	require.True(t, fx.store.recipients["rec-1"].Balance.Equal(decimal.NewFromInt(10)))
}

func TestDepositRejectsUnderfundedSourceWallet(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(10)
	fx.fund(fx.ngo.Address, 5)

	_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(10), "", "")

	var insufficient *settlement.InsufficientSourceFundsError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.Equal(decimal.NewFromInt(5)))
	require.Zero(t, fx.gw.SubmitCalls)
	require.True(t, fx.store.recipients["rec-1"].Balance.Equal(decimal.NewFromInt(10)))
}

func TestDepositSurfacesLedgerFailure(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)
	fx.gw.FailSubmit = errors.New("node rejected transaction")

	_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(25), "", "")

	var ledgerErr *settlement.LedgerError
	require.ErrorAs(t, err, &ledgerErr)
	require.True(t, fx.store.recipients["rec-1"].Balance.IsZero())
	require.Empty(t, fx.store.movements)

	// The pending audit row stays behind, flipped to failed.
	require.Len(t, fx.store.payouts, 1)
	require.Equal(t, "failed", fx.store.payouts[0].Status)
	require.Empty(t, fx.store.payouts[0].TxHash)
}

func TestNonPositiveAmountsRejectedBeforeAnyCall(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", amount, "", "")
		require.ErrorIs(t, err, settlement.ErrInvalidAmount)

		_, err = fx.engine.Withdraw(context.Background(), "ngo-1", "rec-1", amount, "", "")
		require.ErrorIs(t, err, settlement.ErrInvalidAmount)
	}
	require.Zero(t, fx.gw.SubmitCalls)
	require.Zero(t, fx.gw.BalanceCalls)
}

func TestDepositUnknownRecipient(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-missing", decimal.NewFromInt(5), "", "")
	require.ErrorIs(t, err, settlement.ErrRecipientNotFound)
}

func TestDepositWrongNGORejected(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)

	_, err := fx.engine.Deposit(context.Background(), "ngo-other", "rec-1", decimal.NewFromInt(5), "", "")
	require.ErrorIs(t, err, settlement.ErrNotAuthorized)
	require.Zero(t, fx.gw.SubmitCalls)
}

func TestWithdrawHappyPath(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(30)
	fx.fund(fx.rec.Address, 30)

	res, err := fx.engine.Withdraw(context.Background(), "ngo-1", "rec-1", decimal.RequireFromString("12.34"), "", "school fees")
	require.NoError(t, err)

	require.True(t, res.PreviousBalance.Equal(decimal.NewFromInt(30)))
	require.True(t, res.NewBalance.Equal(decimal.RequireFromString("17.66")))
	require.Len(t, fx.store.movements, 1)
	require.Equal(t, "out", fx.store.movements[0].Direction)

	require.Len(t, fx.gw.Transfers, 1)
	require.Equal(t, fx.rec.Address, fx.gw.Transfers[0].Sender)
	require.Equal(t, fx.ngo.Address, fx.gw.Transfers[0].Destination)
}

func TestAmountsTruncateToCents(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)

	res, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.RequireFromString("10.019"), "", "")
	require.NoError(t, err)
	require.True(t, res.Amount.Equal(decimal.RequireFromString("10.01")), "got %s", res.Amount)
	require.True(t, res.NewBalance.Equal(decimal.RequireFromString("10.01")))
}

func TestBalanceWriteRetriesOnConflict(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(5)
	fx.fund(fx.ngo.Address, 100)

	// A concurrent deposit of $1 lands right before our first write.
	fired := false
	fx.store.beforeBalanceWrite = func() {
		if fired {
			return
		}
		fired = true
		r := fx.store.recipients["rec-1"]
		r.Balance = r.Balance.Add(decimal.NewFromInt(1))
		r.Version++
	}

	res, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(10), "", "")
	require.NoError(t, err)

	// The retry rebased onto the concurrent write: 5 + 1 + 10.
	require.True(t, res.NewBalance.Equal(decimal.NewFromInt(16)), "got %s", res.NewBalance)
	require.True(t, fx.store.recipients["rec-1"].Balance.Equal(decimal.NewFromInt(16)))
	// Exactly one transfer despite the local retry.
	require.Equal(t, 1, fx.gw.SubmitCalls)
}

func TestIdempotencyKeyStableAcrossIdenticalRuns(t *testing.T) {
	keyFor := func() string {
		fx := newFixture(t)
		fx.fund(fx.ngo.Address, 100)
		_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(25), "", "ration top-up")
		require.NoError(t, err)
		require.Len(t, fx.store.payouts, 1)
		return fx.store.payouts[0].IdempotencyKey
	}

	first := keyFor()
	second := keyFor()
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}

func TestRedeemHappyPath(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(20)
	fx.fund(fx.rec.Address, 20)

	req := models.RedeemRequest{
		VoucherID:   "voucher-77",
		StoreID:     "store-9",
		RecipientID: "rec-1",
		ProgramID:   "program-3",
		AmountMinor: 1234,
		Currency:    "USD",
	}
	res, err := fx.engine.Redeem(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, "completed", res.Status)
	require.NotEmpty(t, res.TxHash)
	require.InDelta(t, 7.66, res.NewBalance, 0.001)

	// Slippage-bounded quote invariant.
	require.LessOrEqual(t, res.Quote.DeliverMin, req.AmountMinor)
	require.LessOrEqual(t, req.AmountMinor, res.Quote.SendMax)

	require.Len(t, fx.store.payouts, 1)
	payout := fx.store.payouts[0]
	require.Equal(t, "voucher-77", payout.VoucherID)
	require.Equal(t, "store-9", payout.StoreID)
	require.Equal(t, "program-3", payout.ProgramID)
	require.Equal(t, "paid", payout.Status)
	require.Equal(t, res.Quote.QuoteID, payout.QuoteID)

	require.Len(t, fx.gw.Transfers, 1)
	require.Equal(t, offRampAddr, fx.gw.Transfers[0].Destination)
}

func TestAuditRowsSurviveBalanceWriteExhaustion(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(5)
	fx.fund(fx.ngo.Address, 100)

	// A concurrent writer wins every retry attempt.
	fx.store.beforeBalanceWrite = func() {
		fx.store.recipients["rec-1"].Version++
	}

	_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(10), "", "")
	require.ErrorIs(t, err, settlement.ErrConflict)

	// The transfer happened exactly once, so the conflict must not erase
	// its audit trail.
	require.Equal(t, 1, fx.gw.SubmitCalls)
	require.Len(t, fx.store.payouts, 1)
	require.Equal(t, "completed", fx.store.payouts[0].Status)
	require.NotEmpty(t, fx.store.payouts[0].TxHash)
	require.NotEmpty(t, fx.store.payouts[0].IdempotencyKey)
	require.Len(t, fx.store.movements, 1)
	require.Equal(t, fx.store.payouts[0].TxHash, fx.store.movements[0].TxHash)
}

func TestDepositRecordsProgram(t *testing.T) {
	fx := newFixture(t)
	fx.fund(fx.ngo.Address, 100)

	_, err := fx.engine.Deposit(context.Background(), "ngo-1", "rec-1", decimal.NewFromInt(10), "program-9", "")
	require.NoError(t, err)

	require.Len(t, fx.store.payouts, 1)
	require.Equal(t, "program-9", fx.store.payouts[0].ProgramID)
	require.Equal(t, "program-9", fx.store.movements[0].Memos["program_id"])
}

func TestRedeemAttachesDestinationTag(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(20)
	fx.fund(fx.rec.Address, 20)

	rates, err := ledger.NewRates(2.0)
	require.NoError(t, err)
	engine := settlement.NewEngine(fx.store, fx.gw, rates, offRampAddr, 7011)

	_, err = engine.Redeem(context.Background(), models.RedeemRequest{
		VoucherID:   "voucher-2",
		StoreID:     "store-2",
		RecipientID: "rec-1",
		AmountMinor: 500,
		Currency:    "USD",
	})
	require.NoError(t, err)

	require.Len(t, fx.gw.Transfers, 1)
	tagged := false
	for _, m := range fx.gw.Transfers[0].Memos {
		if m.Type == "dest_tag" && m.Value == "7011" {
			tagged = true
		}
	}
	require.True(t, tagged, "off-ramp destination tag missing from memos")
}

func TestRedeemRejectsInsufficientBalanceWithoutLedgerCalls(t *testing.T) {
	fx := newFixture(t)
	fx.rec.Balance = decimal.NewFromInt(10)

	req := models.RedeemRequest{
		VoucherID:   "voucher-1",
		StoreID:     "store-1",
		RecipientID: "rec-1",
		ProgramID:   "program-1",
		AmountMinor: 1500,
		Currency:    "USD",
	}
	_, err := fx.engine.Redeem(context.Background(), req)

	var insufficient *settlement.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.Zero(t, fx.gw.SubmitCalls)
	require.Zero(t, fx.gw.BalanceCalls)
}
