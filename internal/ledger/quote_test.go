package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewQuoteBounds(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)

	q, err := r.NewQuote(NativeCurrency, "USD", 1234)
	require.NoError(t, err)

	require.NotEmpty(t, q.QuoteID)
	require.Equal(t, NativeCurrency, q.FromCurrency)
	require.Equal(t, "USD", q.ToCurrency)
	require.Equal(t, int64(1234), q.AmountMinor)
	require.Equal(t, int64(2_000_000), q.RatePPM)

	// 99% of 12.34 in minor units, truncated.
	require.Equal(t, int64(1221), q.DeliverMin)
	// 12.34 / 2 tokens in drops, plus 1% headroom, truncated.
	require.Equal(t, int64(6_231_700), q.SendMax)

	require.LessOrEqual(t, q.DeliverMin, q.AmountMinor)
	require.LessOrEqual(t, q.AmountMinor, q.SendMax)
}

func TestNewQuoteRejectsBadInput(t *testing.T) {
	r, err := NewRates(2.0)
	require.NoError(t, err)

	_, err = r.NewQuote("USD", "EUR", 100)
	require.Error(t, err)

	_, err = r.NewQuote(NativeCurrency, "", 100)
	require.Error(t, err)

	_, err = r.NewQuote(NativeCurrency, "USD", 0)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}
