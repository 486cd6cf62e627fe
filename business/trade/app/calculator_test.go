package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/fixedpoint"
)

func newTestCalculator(deps CalculatorDeps) *Calculator {
	if deps.Oracle == nil {
		deps.Oracle = &fakeOracle{price: decimal.NewFromInt(3)}
	}
	if deps.Fees == nil {
		deps.Fees = &fakeFees{}
	}
	if deps.Shares == nil {
		deps.Shares = fakeShares{}
	}
	if deps.Pools == nil {
		deps.Pools = &fakePools{}
	}
	if deps.Markets == nil {
		deps.Markets = &fakeMarkets{}
	}
	return NewCalculator(testChain(), deps, &mockLogger{})
}

func TestCalculator_MarketInfo(t *testing.T) {
	updater := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	params := &domain.MarketParams{MarginLimit: 3000, FeesRate: 60, PriceUpdater: updater}

	t.Run("missing market", func(t *testing.T) {
		c := newTestCalculator(CalculatorDeps{Markets: &fakeMarkets{}})
		info, err := c.MarketInfo(context.Background(), 16, updater)
		if err != nil || info != nil {
			t.Errorf("MarketInfo() = %+v, %v, want nil, nil", info, err)
		}
	})

	t.Run("price updater discount", func(t *testing.T) {
		c := newTestCalculator(CalculatorDeps{Markets: &fakeMarkets{params: params}})
		info, err := c.MarketInfo(context.Background(), 16, updater)
		if err != nil {
			t.Fatalf("MarketInfo() error = %v", err)
		}
		if !info.DiscountLeverFeesRate.Equal(decimal.NewFromInt(45)) {
			t.Errorf("DiscountLeverFeesRate = %s, want 45", info.DiscountLeverFeesRate)
		}
		if !info.MarginLimit.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("MarginLimit = %s", info.MarginLimit)
		}
	})
}

func TestCalculator_PoolInfo(t *testing.T) {
	c := newTestCalculator(CalculatorDeps{Pools: &fakePools{
		rate:      big.NewInt(1_000_000_000),
		available: ether("1234.5"),
	}})

	info, err := c.PoolInfo(context.Background(), common.Address{}, 18)
	if err != nil {
		t.Fatalf("PoolInfo() error = %v", err)
	}
	// 1e9 × 10512000 blocks × 100 / 1e18
	if !info.BorrowInterest.Equal(decimal.RequireFromString("1.0512")) {
		t.Errorf("BorrowInterest = %s, want 1.0512", info.BorrowInterest)
	}
	if !info.BorrowingAvailable.Equal(decimal.RequireFromString("1234.5")) {
		t.Errorf("BorrowingAvailable = %s", info.BorrowingAvailable)
	}
}

func TestCalculator_CalculateBorrowing(t *testing.T) {
	pair := testPair("3")
	discountRate := decimal.NewFromInt(45)

	tests := []struct {
		name          string
		long, dep     domain.Side
		wantBorrowing string
		wantSwap      string
		wantLever     string
	}{
		{name: "deposit the borrowed leg", long: domain.Token0, dep: domain.Token1, wantBorrowing: "2", wantSwap: "2.9865", wantLever: "3"},
		{name: "deposit the long leg", long: domain.Token0, dep: domain.Token0, wantBorrowing: "6", wantSwap: "6", wantLever: "3"},
		{name: "deposit the long leg token1", long: domain.Token1, dep: domain.Token1, wantBorrowing: "0.666666666666666666666666666666666666", wantSwap: "0.666666666666666666666666666666666666", wantLever: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCalculator(CalculatorDeps{})
			ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), tt.long, tt.dep)

			res, err := c.CalculateBorrowing(context.Background(), pair, ti, discountRate)
			if err != nil {
				t.Fatalf("CalculateBorrowing() error = %v", err)
			}
			if !res.Borrowing.Equal(decimal.RequireFromString(tt.wantBorrowing)) {
				t.Errorf("Borrowing = %s, want %s", res.Borrowing, tt.wantBorrowing)
			}
			if !res.SwapTotalAmount.Equal(decimal.RequireFromString(tt.wantSwap)) {
				t.Errorf("SwapTotalAmount = %s, want %s", res.SwapTotalAmount, tt.wantSwap)
			}
			if !res.LeverTotalAmount.Equal(decimal.RequireFromString(tt.wantLever)) {
				t.Errorf("LeverTotalAmount = %s, want %s", res.LeverTotalAmount, tt.wantLever)
			}
			if !res.DiscountLeverFees.Equal(decimal.RequireFromString("0.0135")) {
				t.Errorf("DiscountLeverFees = %s, want 0.0135", res.DiscountLeverFees)
			}
		})
	}
}

func TestCalculator_CalculateBorrowing_NoPrice(t *testing.T) {
	pair := testPair("3")
	c := newTestCalculator(CalculatorDeps{Oracle: &fakeOracle{}})
	ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token0)

	_, err := c.CalculateBorrowing(context.Background(), pair, ti, decimal.Zero)
	if apperror.GetCode(err) != apperror.CodeCalculationInvariant {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeCalculationInvariant)
	}
}

func TestCalculator_CalculatePosition_PnL(t *testing.T) {
	pair := testPair("3")
	pos := domain.OnChainPosition{
		Deposited:   ether("2"),
		Held:        ether("10"),
		Borrowed:    ether("5"),
		MarginRatio: big.NewInt(5000),
		MarginLimit: big.NewInt(3000),
	}
	three := decimal.NewFromInt(3)

	tests := []struct {
		name      string
		long, dep domain.Side
		want      decimal.Decimal
	}{
		{name: "long token0 deposit token0", long: domain.Token0, dep: domain.Token0, want: decimal.NewFromInt(8).Sub(fixedpoint.Div(decimal.NewFromInt(5), three))},
		{name: "long token0 deposit token1", long: domain.Token0, dep: domain.Token1, want: decimal.NewFromInt(23)},
		{name: "long token1 deposit token0", long: domain.Token1, dep: domain.Token0, want: fixedpoint.Div(decimal.NewFromInt(10), three).Sub(decimal.NewFromInt(7))},
		{name: "long token1 deposit token1", long: domain.Token1, dep: domain.Token1, want: decimal.NewFromInt(-7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCalculator(CalculatorDeps{Pools: &fakePools{stored: ether("5")}})

			view, err := c.CalculatePosition(context.Background(), pair, tt.long, tt.dep, pos, wbnb)
			if err != nil {
				t.Fatalf("CalculatePosition() error = %v", err)
			}
			if !view.PnLValue.Equal(tt.want) {
				t.Errorf("PnLValue = %s, want %s", view.PnLValue, tt.want)
			}
			if !view.Held.Equal(decimal.NewFromInt(10)) {
				t.Errorf("Held = %s, want 10", view.Held)
			}
			if !view.MarginLimit.Equal(decimal.NewFromInt(30)) {
				t.Errorf("MarginLimit = %s, want 30", view.MarginLimit)
			}
			if view.PriceDex != "3" {
				t.Errorf("PriceDex = %s, want 3", view.PriceDex)
			}
		})
	}
}

func TestCalculator_CalculatePosition_Prices(t *testing.T) {
	pair := testPair("3")
	pos := domain.OnChainPosition{
		Deposited:   ether("2"),
		Held:        ether("10"),
		Borrowed:    ether("5"),
		MarginRatio: big.NewInt(5000),
		MarginLimit: big.NewInt(3000),
	}
	c := newTestCalculator(CalculatorDeps{Pools: &fakePools{stored: ether("5")}})

	view, err := c.CalculatePosition(context.Background(), pair, domain.Token0, domain.Token1, pos, wbnb)
	if err != nil {
		t.Fatalf("CalculatePosition() error = %v", err)
	}
	// (deposited + borrowed) / held
	if !view.OpenPrice.Equal(decimal.RequireFromString("0.7")) {
		t.Errorf("OpenPrice = %s, want 0.7", view.OpenPrice)
	}
	// (1 + 30/100) × borrowed / held
	if !view.LiquidationPrice.Equal(decimal.RequireFromString("0.65")) {
		t.Errorf("LiquidationPrice = %s, want 0.65", view.LiquidationPrice)
	}
	if !view.PnLPercent.Equal(decimal.NewFromInt(1150)) {
		t.Errorf("PnLPercent = %s, want 1150", view.PnLPercent)
	}
}

func TestCalculator_ShareConversions(t *testing.T) {
	c := newTestCalculator(CalculatorDeps{})

	amount, err := c.ShareToAmount(context.Background(), decimal.RequireFromString("1.5"), wbnb, 18)
	if err != nil || !amount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ShareToAmount() = %s, %v", amount, err)
	}
	share, err := c.AmountToShare(context.Background(), decimal.RequireFromString("2.25"), wbnb, 18)
	if err != nil || !share.Equal(decimal.RequireFromString("2.25")) {
		t.Errorf("AmountToShare() = %s, %v", share, err)
	}
}

func TestCalculator_CheckNeedToUpdatePrice(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pair := testPair("3")
	ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(50), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)
	borrow := domain.BorrowToTradeResult{Borrowing: decimal.NewFromInt(100)}
	market := domain.MarketInfo{MarginLimit: decimal.NewFromInt(3000)}

	tests := []struct {
		name        string
		venue       string
		held        int64
		impact      string
		elapsed     time.Duration
		wantShould  bool
		wantWaiting int64
	}{
		{name: "price too fresh", venue: "3", held: 101, impact: "0", elapsed: 30 * time.Second, wantShould: false, wantWaiting: 30},
		{name: "price old enough", venue: "3", held: 101, impact: "0", elapsed: 90 * time.Second, wantShould: true, wantWaiting: 0},
		{name: "fractional wait rounds up", venue: "3", held: 101, impact: "0", elapsed: 59500 * time.Millisecond, wantShould: false, wantWaiting: 1},
		{name: "impact too large", venue: "3", held: 101, impact: "10.5", elapsed: 90 * time.Second, wantShould: false, wantWaiting: 0},
		{name: "healthy margin", venue: "3", held: 200, impact: "0", elapsed: 90 * time.Second, wantShould: false, wantWaiting: 0},
		{name: "concentrated liquidity waits", venue: "33557432", held: 101, impact: "0", elapsed: 90 * time.Second, wantShould: false, wantWaiting: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCalculator(CalculatorDeps{
				History: &fakeHistory{snap: &domain.PriceSnapshot{
					Price:     big.NewInt(1),
					CAvgPrice: big.NewInt(1),
					HAvgPrice: big.NewInt(1),
					UpdatedAt: base,
				}},
				Clock: fakeClock{now: base.Add(tt.elapsed)},
			})

			q := &domain.TradeQuote{
				Dex:         tt.venue,
				Held:        decimal.NewFromInt(tt.held),
				PriceImpact: decimal.RequireFromString(tt.impact),
			}
			route := &domain.OpenRoute{}
			route.Set(tt.venue, q)
			route.Set(domain.AggregatorVenueID, &domain.TradeQuote{Dex: domain.AggregatorVenueID})

			if err := c.CheckNeedToUpdatePrice(context.Background(), route, pair, ti, borrow, market); err != nil {
				t.Fatalf("CheckNeedToUpdatePrice() error = %v", err)
			}
			if q.ShouldUpdatePrice != tt.wantShould {
				t.Errorf("ShouldUpdatePrice = %v, want %v", q.ShouldUpdatePrice, tt.wantShould)
			}
			if q.WaitingSecond != tt.wantWaiting {
				t.Errorf("WaitingSecond = %d, want %d", q.WaitingSecond, tt.wantWaiting)
			}
		})
	}
}

// Legs with different decimals rescale the averaged price before the
// margin check.
func TestCalculator_CheckNeedToUpdatePrice_MixedDecimals(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pair := testPair("3")
	pair.Token1 = asset.NewAsset(asset.NewTokenAssetID(56, common.HexToAddress("0x55d398326f99059ff775485246999027b3197955")), "USDT", 6)
	borrow := domain.BorrowToTradeResult{Borrowing: decimal.NewFromInt(100)}
	market := domain.MarketInfo{MarginLimit: decimal.NewFromInt(3000)}

	// Both cases resolve to an averaged price of 2 once scaled by
	// 10^(d0-d1) for a token0 long and 10^(d1-d0) for a token1 long.
	tests := []struct {
		name       string
		long, dep  domain.Side
		cAvg       string
		held       int64
		wantShould bool
	}{
		{name: "token0 long thin margin", long: domain.Token0, dep: domain.Token1, cAvg: "2", held: 60, wantShould: true},
		{name: "token0 long healthy margin", long: domain.Token0, dep: domain.Token1, cAvg: "2", held: 90, wantShould: false},
		{name: "token1 long thin margin", long: domain.Token1, dep: domain.Token0, cAvg: "2000000000000000000000000", held: 60, wantShould: true},
		{name: "token1 long healthy margin", long: domain.Token1, dep: domain.Token0, cAvg: "2000000000000000000000000", held: 90, wantShould: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cAvg, _ := new(big.Int).SetString(tt.cAvg, 10)
			c := newTestCalculator(CalculatorDeps{
				History: &fakeHistory{snap: &domain.PriceSnapshot{
					Price:     cAvg,
					CAvgPrice: cAvg,
					HAvgPrice: cAvg,
					Decimals:  12,
					UpdatedAt: base,
				}},
				Clock: fakeClock{now: base.Add(90 * time.Second)},
			})

			ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(50), 3, decimal.RequireFromString("0.01"), tt.long, tt.dep)
			q := &domain.TradeQuote{
				Dex:         "3",
				Held:        decimal.NewFromInt(tt.held),
				PriceImpact: decimal.Zero,
			}
			route := &domain.OpenRoute{}
			route.Set("3", q)

			if err := c.CheckNeedToUpdatePrice(context.Background(), route, pair, ti, borrow, market); err != nil {
				t.Fatalf("CheckNeedToUpdatePrice() error = %v", err)
			}
			if q.ShouldUpdatePrice != tt.wantShould {
				t.Errorf("ShouldUpdatePrice = %v, want %v", q.ShouldUpdatePrice, tt.wantShould)
			}
			if q.WaitingSecond != 0 {
				t.Errorf("WaitingSecond = %d, want 0", q.WaitingSecond)
			}
		})
	}
}
