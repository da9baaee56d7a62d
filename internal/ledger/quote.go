package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is a slippage-bounded conversion offer for an off-ramp payout.
// Invariant: DeliverMin <= AmountMinor <= SendMax (in their respective units).
type Quote struct {
	QuoteID      string `json:"quote_id"`
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	AmountMinor  int64  `json:"amount_minor"`
	RatePPM      int64  `json:"rate_ppm"`
	DeliverMin   int64  `json:"deliver_min"`
	SendMax      int64  `json:"send_max"`
}

var (
	deliverFloor = decimal.NewFromFloat(0.99)
	sendCeiling  = decimal.NewFromFloat(1.01)
)

// NewQuote prices amountMinor of fiat against the native token. Only
// native-to-fiat quotes are supported. Both bounds truncate.
func (r *Rates) NewQuote(fromCurrency, toCurrency string, amountMinor int64) (Quote, error) {
	if fromCurrency != NativeCurrency {
		return Quote{}, fmt.Errorf("only %s quotes are supported", NativeCurrency)
	}
	if toCurrency == "" {
		return Quote{}, fmt.Errorf("missing destination currency")
	}
	if amountMinor <= 0 {
		return Quote{}, ErrNonPositiveAmount
	}

	amountMajor := decimal.NewFromInt(amountMinor).Div(centsPerUSD)
	deliverMin := decimal.NewFromInt(amountMinor).Mul(deliverFloor).Truncate(0).IntPart()
	sendMax := amountMajor.Div(r.usdPerToken).Mul(dropsPerToken).Mul(sendCeiling).Truncate(0).IntPart()

	return Quote{
		QuoteID:      uuid.NewString(),
		FromCurrency: fromCurrency,
		ToCurrency:   toCurrency,
		AmountMinor:  amountMinor,
		RatePPM:      r.RatePPM(),
		DeliverMin:   deliverMin,
		SendMax:      sendMax,
	}, nil
}
