package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/fixedpoint"
)

// FeeRatePrecision is the denominator of transfer-fee rates.
const FeeRatePrecision = 1_000_000

const (
	// PriceUpdaterDiscount is the percentage taken off lever fees for the
	// market's price updater.
	PriceUpdaterDiscount = 25
	// DefaultDexGas is the gas a default venue swap costs. Aggregator gas
	// above it is charged to the aggregator quote.
	DefaultDexGas = 80000
	// PriceUpdateCooldown is the minimum age of a constant-product price
	// before the protocol accepts an update.
	PriceUpdateCooldown = 60 * time.Second
	// ConcentratedLiquidityWait is the waiting time reported for
	// concentrated-liquidity venues, whose prices cannot be updated.
	ConcentratedLiquidityWait = 60
	// MaxUpdatePriceImpact is the price impact, in percent, above which a
	// price update signal is discarded.
	MaxUpdatePriceImpact = 10
	// MaxLiquidityShare is the largest share, in percent, of a
	// constant-product pool's sell-leg reserve a position may borrow.
	MaxLiquidityShare = 10
	// TWAPWindow is the averaging window of the protocol price history.
	TWAPWindow = 60 * time.Second
)

// TransferFeeKind selects which protocol tax rate is read for a token.
type TransferFeeKind uint8

const (
	TransferFee TransferFeeKind = 0
	SellFee     TransferFeeKind = 1
	BuyFee      TransferFeeKind = 2
)

func (k TransferFeeKind) String() string {
	switch k {
	case TransferFee:
		return "transfer"
	case SellFee:
		return "sell"
	case BuyFee:
		return "buy"
	default:
		return "unknown"
	}
}

var (
	feePrecision = decimal.NewFromInt(FeeRatePrecision)
	minSlippage  = decimal.RequireFromString("0.005")
)

// FeeKeep returns (P - rate) / P, the fraction left after a transfer fee.
func FeeKeep(rate uint32) decimal.Decimal {
	return fixedpoint.Div(feePrecision.Sub(decimal.NewFromInt(int64(rate))), feePrecision)
}

// AfterFee returns amount × (P - rate) / P.
func AfterFee(amount decimal.Decimal, rate uint32) decimal.Decimal {
	return fixedpoint.Div(amount.Mul(feePrecision.Sub(decimal.NewFromInt(int64(rate)))), feePrecision)
}

// AmountBeforeTax returns the smallest whole amount that still covers
// amount once a rate fee is deducted:
// floor((a·P + (P−r) − 1) / (P−r)). amount is in minor units and is
// rounded up to a whole unit first.
func AmountBeforeTax(amount decimal.Decimal, rate uint32) *big.Int {
	denominator := feePrecision.Sub(decimal.NewFromInt(int64(rate)))
	numerator := amount.Ceil().Mul(feePrecision).Add(denominator).Sub(fixedpoint.One)
	return fixedpoint.FloorDiv(numerator, denominator).BigInt()
}

// ClampSlippage bounds slippage to [0.005, 1].
func ClampSlippage(s decimal.Decimal) decimal.Decimal {
	return fixedpoint.Clamp(s, minSlippage, fixedpoint.One)
}
