// Package app contains the trade calculator, the venue router and the
// trade service, plus the ports they reach external systems through.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
)

// TransferFeeReader reads the protocol's per-token tax rates, in
// 1/FeeRatePrecision units.
type TransferFeeReader interface {
	TransferFeeRate(ctx context.Context, marketID uint16, token common.Address, kind domain.TransferFeeKind) (uint32, error)
}

// MarketReader reads market parameters. A missing market is (nil, nil).
type MarketReader interface {
	Market(ctx context.Context, marketID uint16) (*domain.MarketParams, error)
}

// SpotPriceOracle returns the price of tokenA in tokenB, in human units,
// read through the venue's liquidity.
type SpotPriceOracle interface {
	SpotPrice(ctx context.Context, tokenA, tokenB common.Address, decimalsA, decimalsB int32, venue domain.Venue) (decimal.Decimal, error)
}

// ConstantProductRequest is the input of a constant-product quote. Amount
// is the sell amount for QuoteBuy and the buy amount for QuoteSell.
type ConstantProductRequest struct {
	BuyToken  common.Address
	SellToken common.Address
	BuyTax    uint32
	SellTax   uint32
	Amount    *big.Int
	CallData  []byte
}

// ConstantProductQuoter quotes constant-product venues through the
// protocol's dex aggregator contract.
type ConstantProductQuoter interface {
	QuoteBuy(ctx context.Context, req ConstantProductRequest) (*big.Int, error)
	QuoteSell(ctx context.Context, req ConstantProductRequest) (*big.Int, error)
}

// ConcentratedLiquidityQuoter quotes single-pool concentrated-liquidity swaps.
type ConcentratedLiquidityQuoter interface {
	QuoteExactIn(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error)
	QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error)
}

// SwapRequest asks the aggregator for executable swap call data.
type SwapRequest struct {
	SellToken common.Address
	BuyToken  common.Address
	Amount    *big.Int
	From      common.Address
	// SlippagePercent is slippage × 100.
	SlippagePercent decimal.Decimal
	GasPriceGwei    decimal.Decimal
}

// SwapData is the aggregator's executable swap.
type SwapData struct {
	Data     []byte
	ToAmount *big.Int
}

// AggregatorQuoter talks to the swap aggregator.
type AggregatorQuoter interface {
	Quote(ctx context.Context, sellToken, buyToken common.Address, amount *big.Int) (*domain.AggregatorQuote, error)
	Swap(ctx context.Context, req SwapRequest) (*SwapData, error)
}

// PriceHistoryReader reads the protocol's current and averaged prices.
type PriceHistoryReader interface {
	AveragePrices(ctx context.Context, marketID uint16, buyToken, sellToken common.Address, twap time.Duration, callData []byte) (*domain.PriceSnapshot, error)
}

// ShareAccounting reads the protocol's held-share supply for a token.
type ShareAccounting interface {
	ShareSupply(ctx context.Context, token common.Address) (*domain.ShareSupply, error)
}

// PoolReader reads lending pool state.
type PoolReader interface {
	BorrowRatePerBlock(ctx context.Context, pool common.Address) (*big.Int, error)
	AvailableForBorrow(ctx context.Context, pool common.Address) (*big.Int, error)
	BorrowBalanceStored(ctx context.Context, pool, borrower common.Address) (*big.Int, error)
	BorrowBalanceCurrent(ctx context.Context, pool, borrower common.Address) (*big.Int, error)
}

// PairReserves are the raw reserves of a constant-product pair, ordered
// by token address like the pair contract orders them.
type PairReserves struct {
	Pair     common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// PairLiquidityReader resolves a constant-product pair through its factory.
// A pair that does not exist is (nil, nil).
type PairLiquidityReader interface {
	Reserves(ctx context.Context, factory, tokenA, tokenB common.Address) (*PairReserves, error)
}

// GasPriceOracle returns the current gas price in wei.
type GasPriceOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// PositionReader reads a trader's position from the query helper. A
// trader without a position yields an empty OnChainPosition.
type PositionReader interface {
	TraderPosition(ctx context.Context, marketID uint16, trader common.Address, long domain.Side, callData []byte) (*domain.OnChainPosition, error)
}

// TradeEncoder packs unsigned margin protocol calls.
type TradeEncoder interface {
	EncodeMarginTrade(plan *OpenPlan) ([]byte, error)
	EncodeCloseTrade(plan *ClosePlan) ([]byte, error)
}

// Clock is the time source of the stale-price pass.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ChainParams is the chain-level configuration the trade services need.
type ChainParams struct {
	ChainID        uint64
	BlocksPerYear  int64
	OpenLev        common.Address
	NativeToken    common.Address
	NativeDecimals int32
	USDT           common.Address
	USDTDecimals   int32
	TWAP           time.Duration
}
