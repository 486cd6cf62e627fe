package domain

import "github.com/shopspring/decimal"

// BorrowToTradeResult sizes the borrow side of an open trade. All amounts
// are human units: Borrowing in the borrowed leg, the rest in the leg
// that is swapped.
type BorrowToTradeResult struct {
	Borrowing         decimal.Decimal
	SwapTotalAmount   decimal.Decimal
	LeverTotalAmount  decimal.Decimal
	DiscountLeverFees decimal.Decimal
}
