package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/apperror"
)

// MinLevel is the smallest leverage multiple a trade may request.
const MinLevel = 2

// TradeInfo is an open-trade intent. Amounts are in human units.
type TradeInfo struct {
	DepositAmount decimal.Decimal
	Level         int64
	Slippage      decimal.Decimal
	LongToken     Side
	DepositToken  Side
	// BuyToken is the long leg, SellToken the borrowed leg.
	BuyToken            common.Address
	SellToken           common.Address
	DepositTokenAddress common.Address
}

// NewOpenTradeInfo derives the swap legs of an open trade from the pair.
func NewOpenTradeInfo(pair Pair, deposit decimal.Decimal, level int64, slippage decimal.Decimal, long, dep Side) TradeInfo {
	return TradeInfo{
		DepositAmount:       deposit,
		Level:               level,
		Slippage:            slippage,
		LongToken:           long,
		DepositToken:        dep,
		BuyToken:            pair.Address(long),
		SellToken:           pair.Address(long.Other()),
		DepositTokenAddress: pair.Address(dep),
	}
}

// LongEqualsDeposit reports whether the trader deposits the leg they go long.
func (t TradeInfo) LongEqualsDeposit() bool {
	return t.LongToken == t.DepositToken
}

// BorrowSide is the leg borrowed from the lending pool.
func (t TradeInfo) BorrowSide() Side {
	return t.LongToken.Other()
}

// Validate checks the intent against the pair it targets.
func (t TradeInfo) Validate(pair Pair) error {
	switch {
	case !t.LongToken.Valid() || !t.DepositToken.Valid():
		return invalidTrade("longToken and depositToken must be 0 or 1")
	case t.Level < MinLevel:
		return invalidTrade(fmt.Sprintf("level %d below %d", t.Level, MinLevel))
	case !t.DepositAmount.IsPositive():
		return invalidTrade("deposit amount must be positive")
	case t.Slippage.IsNegative():
		return invalidTrade("slippage must not be negative")
	case t.BuyToken != pair.Address(t.LongToken):
		return invalidTrade("buyToken does not match the long leg")
	case t.SellToken != pair.Address(t.BorrowSide()):
		return invalidTrade("sellToken does not match the borrowed leg")
	case t.DepositTokenAddress != pair.Address(t.DepositToken):
		return invalidTrade("depositTokenAddress does not match the deposit leg")
	}
	return nil
}

// CloseTradeInfo is a close-trade intent. CloseAmount is in human units of
// the held leg.
type CloseTradeInfo struct {
	CloseAmount decimal.Decimal
	Slippage    decimal.Decimal
	Share       decimal.Decimal
}

// Validate checks the close amount.
func (c CloseTradeInfo) Validate() error {
	if !c.CloseAmount.IsPositive() {
		return invalidTrade("close amount must be positive")
	}
	if c.Slippage.IsNegative() {
		return invalidTrade("slippage must not be negative")
	}
	return nil
}

// CloseLegs returns the swap legs of a close: the long leg is sold to buy
// back the borrowed leg.
func CloseLegs(pair Pair, long Side) (buy, sell common.Address) {
	return pair.Address(long.Other()), pair.Address(long)
}

func invalidTrade(reason string) error {
	return apperror.New(apperror.CodeInvalidTrade, apperror.WithContext(reason))
}
