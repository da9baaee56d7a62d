package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be > 0")
	ErrNegativeDrops     = errors.New("drops must be >= 0")
)

var (
	dropsPerToken = decimal.NewFromInt(DropsPerToken)
	centsPerUSD   = decimal.NewFromInt(100)
)

// maxUSDRate caps the configured token price. At 10100 and above, SendMax
// (amountMinor * 10100 / rate, in drops) falls below the quoted minor
// amount and the quote bounds invert.
var maxUSDRate = decimal.NewFromInt(10_000)

// Rates converts between application currency (USD) and ledger drops at a
// configured USD-per-token price. Conversions always truncate, never round
// up, so the system never reports or transfers more value than it holds.
type Rates struct {
	usdPerToken decimal.Decimal
}

func NewRates(usdPerToken float64) (*Rates, error) {
	rate := decimal.NewFromFloat(usdPerToken)
	if rate.Sign() <= 0 || rate.GreaterThan(maxUSDRate) {
		return nil, fmt.Errorf("USD rate %v outside (0, %s]", usdPerToken, maxUSDRate)
	}
	return &Rates{usdPerToken: rate}, nil
}

// Price returns the configured USD price of one native token.
func (r *Rates) Price() decimal.Decimal {
	return r.usdPerToken
}

// RatePPM returns the USD price in parts-per-million, truncated.
func (r *Rates) RatePPM() int64 {
	return r.usdPerToken.Mul(decimal.NewFromInt(1_000_000)).Truncate(0).IntPart()
}

// USDToDrops converts a positive USD amount to drops. Tokens are truncated
// to six decimal places before scaling to the base unit.
func (r *Rates) USDToDrops(usd decimal.Decimal) (int64, error) {
	if usd.Sign() <= 0 {
		return 0, ErrNonPositiveAmount
	}
	tokens := usd.Div(r.usdPerToken).Truncate(6)
	return tokens.Mul(dropsPerToken).Truncate(0).IntPart(), nil
}

// DropsToUSD converts drops to USD, truncated to cents.
func (r *Rates) DropsToUSD(drops int64) (decimal.Decimal, error) {
	if drops < 0 {
		return decimal.Zero, ErrNegativeDrops
	}
	tokens := decimal.NewFromInt(drops).Div(dropsPerToken)
	return tokens.Mul(r.usdPerToken).Truncate(2), nil
}

// CentsToDrops converts USD minor units to drops.
func (r *Rates) CentsToDrops(cents int64) (int64, error) {
	return r.USDToDrops(decimal.NewFromInt(cents).Div(centsPerUSD))
}

// DropsToCents converts drops to USD minor units, truncated.
func (r *Rates) DropsToCents(drops int64) (int64, error) {
	usd, err := r.DropsToUSD(drops)
	if err != nil {
		return 0, err
	}
	return usd.Mul(centsPerUSD).Truncate(0).IntPart(), nil
}
