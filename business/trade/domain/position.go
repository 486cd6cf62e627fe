package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// OnChainPosition is a trader's position as reported by the query helper.
// Held is a share balance in minor units of the held leg, Borrowed and
// Deposited are raw token amounts. MarginRatio and MarginLimit are in
// basis points.
type OnChainPosition struct {
	Deposited   *big.Int
	Held        *big.Int
	Borrowed    *big.Int
	MarginRatio *big.Int
	MarginLimit *big.Int
}

// IsEmpty reports a position with nothing held.
func (p OnChainPosition) IsEmpty() bool {
	return p.Held == nil || p.Held.Sign() == 0
}

// OffChainPositionDetail is the descriptive record of a position used to
// rebuild the swap legs on close.
type OffChainPositionDetail struct {
	Trader       common.Address
	MarketID     uint16
	LongToken    Side
	DepositToken Side
	Token0       common.Address
	Token1       common.Address
	Pool0        common.Address
	Pool1        common.Address
	Lever        decimal.Decimal
}

// PositionView is the derived, human-facing view of a position.
type PositionView struct {
	MarginRatio      decimal.Decimal
	MarginLimit      decimal.Decimal
	CurrentPrice     decimal.Decimal
	PnLValue         decimal.Decimal
	PnLPercent       decimal.Decimal
	Held             decimal.Decimal
	Share            decimal.Decimal
	Deposited        decimal.Decimal
	DepositToken     Side
	OpenPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	PriceDex         string
	OnChain          OnChainPosition
}

// ShareSupply is the share accounting of the protocol for one token.
type ShareSupply struct {
	TotalBalance *big.Int
	TotalShares  *big.Int
}

// PriceSnapshot is the protocol's price history for a market leg pair.
// Prices are scaled by 10^Decimals.
type PriceSnapshot struct {
	Price     *big.Int
	CAvgPrice *big.Int
	HAvgPrice *big.Int
	Decimals  int32
	UpdatedAt time.Time
}
