package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/fixedpoint"
)

// MarketParams is the raw market record held by the margin protocol.
type MarketParams struct {
	Pool0          common.Address
	Pool1          common.Address
	Token0         common.Address
	Token1         common.Address
	MarginLimit    uint16
	FeesRate       uint16
	PriceDiffRatio uint16
	PriceUpdater   common.Address
	Pool0Insurance *big.Int
	Pool1Insurance *big.Int
}

// MarketInfo is the fee and margin view of a market for one trader.
// Rates are in basis points.
type MarketInfo struct {
	MarginLimit           decimal.Decimal
	LeverFeesRate         decimal.Decimal
	DiscountLeverFeesRate decimal.Decimal
	PriceUpdater          common.Address
}

// NewMarketInfo applies the price-updater discount when trader is the
// market's designated price updater.
func NewMarketInfo(p MarketParams, trader common.Address) MarketInfo {
	rate := decimal.NewFromInt(int64(p.FeesRate))
	discounted := rate
	if trader != (common.Address{}) && trader == p.PriceUpdater {
		discounted = DiscountedFeesRate(rate)
	}

	return MarketInfo{
		MarginLimit:           decimal.NewFromInt(int64(p.MarginLimit)),
		LeverFeesRate:         rate,
		DiscountLeverFeesRate: discounted,
		PriceUpdater:          p.PriceUpdater,
	}
}

// DiscountedFeesRate takes PriceUpdaterDiscount percent off rate.
func DiscountedFeesRate(rate decimal.Decimal) decimal.Decimal {
	keep := decimal.NewFromInt(100 - PriceUpdaterDiscount)
	return fixedpoint.Div(rate.Mul(keep), fixedpoint.Hundred)
}

// PoolInfo describes the lending pool of the borrowed leg.
type PoolInfo struct {
	// BorrowInterest is the annualized borrow rate in percent.
	BorrowInterest decimal.Decimal
	// BorrowingAvailable is in human units of the pool token.
	BorrowingAvailable decimal.Decimal
}
