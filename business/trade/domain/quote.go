package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// OverChange explains why the aggregator beat the best default venue.
type OverChange struct {
	Amount decimal.Decimal
	Addr   common.Address
	// Dex is the runner-up venue.
	Dex string
}

// AggregatorLeg holds the fields only an aggregator quote carries.
type AggregatorLeg struct {
	FinalBackUSD       decimal.Decimal
	ToTokenAmountInWei *big.Int
	GasUSD             decimal.Decimal
}

// TradeQuote is one venue's outcome for an open trade.
type TradeQuote struct {
	Dex                  string
	Token0PriceOfToken1  decimal.Decimal
	SwapFeesRate         decimal.Decimal
	SwapFees             decimal.Decimal
	Held                 decimal.Decimal
	MinBuyAmount         decimal.Decimal
	LiquidationPrice     decimal.Decimal
	PriceImpact          decimal.Decimal
	DexCallData          hexutil.Bytes
	SwapTotalAmountInWei *big.Int
	Aggregator           *AggregatorLeg
	OverChange           *OverChange

	// Set by the stale-price pass only.
	ShouldUpdatePrice bool
	WaitingSecond     int64
}

// CloseQuote is one venue's outcome for closing a position. MaxSellAmount
// is only set when the long leg is also the deposit leg: the close then
// buys back exactly the debt and sells at most that much of the long leg.
type CloseQuote struct {
	Dex                  string
	Token0PriceOfToken1  decimal.Decimal
	SwapFeesRate         decimal.Decimal
	SwapFees             decimal.Decimal
	CloseReturns         decimal.Decimal
	MinBuyAmount         decimal.Decimal
	MaxSellAmount        decimal.Decimal
	PriceImpact          decimal.Decimal
	DexCallData          hexutil.Bytes
	SwapTotalAmountInWei *big.Int
	Aggregator           *AggregatorLeg
	OverChange           *OverChange
}

// AggregatorQuote is the raw answer of the aggregator quote endpoint.
type AggregatorQuote struct {
	ToAmount     *big.Int
	Gas          uint64
	FromDecimals int32
	ToDecimals   int32
}
