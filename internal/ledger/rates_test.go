package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUSDToDrops(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)

	// $1 buys half a token at $2 per token.
	drops, err := r.USDToDrops(decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, int64(500_000), drops)

	drops, err = r.USDToDrops(decimal.NewFromInt(25))
	require.NoError(t, err)
	require.Equal(t, int64(12_500_000), drops)

	_, err = r.USDToDrops(decimal.Zero)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
	_, err = r.USDToDrops(decimal.NewFromInt(-3))
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestConversionsTruncate(t *testing.T) {
	r, err := NewRates(3.0)
	require.NoError(t, err)

	// $1 / 3 is 0.333333... tokens, truncated at six places.
	drops, err := r.USDToDrops(decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, int64(333_333), drops)

	// Converting those drops back never rounds up past what was sent.
	usd, err := r.DropsToUSD(drops)
	require.NoError(t, err)
	require.True(t, usd.LessThanOrEqual(decimal.NewFromInt(1)), "got %s", usd)
	require.True(t, usd.Equal(decimal.RequireFromString("0.99")), "got %s", usd)
}

func TestDropsToUSD(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)

	usd, err := r.DropsToUSD(12_500_000)
	require.NoError(t, err)
	require.True(t, usd.Equal(decimal.NewFromInt(25)), "got %s", usd)

	usd, err = r.DropsToUSD(0)
	require.NoError(t, err)
	require.True(t, usd.IsZero())

	_, err = r.DropsToUSD(-1)
	require.ErrorIs(t, err, ErrNegativeDrops)
}

func TestMinorUnitConversions(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)

	drops, err := r.CentsToDrops(1234)
	require.NoError(t, err)
	require.Equal(t, int64(6_170_000), drops)

	cents, err := r.DropsToCents(6_170_000)
	require.NoError(t, err)
	require.Equal(t, int64(1234), cents)
}

func TestRatePPM(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), r.RatePPM())

	r, err = NewRates(0.5)
	require.NoError(t, err)
	require.Equal(t, int64(500_000), r.RatePPM())
}

func TestNewRatesRejectsNonPositive(t *testing.T) {
	_, err := NewRates(0)
	require.Error(t, err)
	_, err = NewRates(-1.5)
	require.Error(t, err)
}

func TestNewRatesRejectsRatesThatInvertQuoteBounds(t *testing.T) {
	_, err := NewRates(10_001)
	require.Error(t, err)

	// The boundary rate still keeps SendMax at or above the quoted amount.
	r, err := NewRates(10_000)
	require.NoError(t, err)
	q, err := r.NewQuote(NativeCurrency, "USD", 1234)
	require.NoError(t, err)
	require.LessOrEqual(t, q.DeliverMin, int64(1234))
	require.LessOrEqual(t, int64(1234), q.SendMax)
}
