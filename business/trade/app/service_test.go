package app

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
)

var trader = common.HexToAddress("0x00000000000000000000000000000000000000b0")

type serviceFixture struct {
	markets   *fakeMarkets
	cp        *fakeCP
	agg       *fakeAggregator
	gas       *fakeGas
	positions *fakePositions
}

func newFixture() *serviceFixture {
	return &serviceFixture{
		markets:   &fakeMarkets{params: &domain.MarketParams{MarginLimit: 3000, FeesRate: 60}},
		cp:        &fakeCP{buy: map[string]*big.Int{}, sell: map[string]*big.Int{}},
		agg:       &fakeAggregator{},
		gas:       &fakeGas{},
		positions: &fakePositions{},
	}
}

func (f *serviceFixture) service() *TradeService {
	chain := testChain()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	oracle := &fakeOracle{price: decimal.NewFromInt(2)}
	pools := &fakePools{}

	calc := NewCalculator(chain, CalculatorDeps{
		Markets: f.markets,
		Fees:    &fakeFees{},
		Oracle:  oracle,
		Shares:  fakeShares{},
		Pools:   pools,
		History: &fakeHistory{snap: &domain.PriceSnapshot{CAvgPrice: big.NewInt(1), UpdatedAt: base}},
		Clock:   fakeClock{now: base.Add(2 * time.Minute)},
	}, &mockLogger{})

	router := NewRouter(chain, RouterDeps{
		Oracle:          oracle,
		ConstantProduct: f.cp,
		Concentrated:    &fakeCL{},
		Aggregator:      f.agg,
		Gas:             f.gas,
		Liquidity:       &fakeLiquidity{},
		Pools:           pools,
	}, &mockLogger{})

	return NewTradeService(chain, ServiceDeps{
		Calculator: calc,
		Router:     router,
		Fees:       &fakeFees{},
		Positions:  f.positions,
		Aggregator: f.agg,
		Gas:        f.gas,
		Encoder:    fakeEncoder{},
	}, &mockLogger{})
}

func TestTradeService_Preview(t *testing.T) {
	f := newFixture()
	f.cp.buy[callData("3")] = ether("140")
	svc := f.service()

	pair := testPair("3")
	ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(100), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)

	preview, err := svc.Preview(context.Background(), pair, ti, trader)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.Dex != "3" || preview.Route.Len() != 1 {
		t.Errorf("Dex = %s, venues = %v", preview.Dex, preview.Route.Venues())
	}
	if !preview.Borrowing.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Borrowing = %s, want 200", preview.Borrowing)
	}
	// 300 lever total × 60 / 10000
	if !preview.LeverFees.Equal(decimal.RequireFromString("1.8")) {
		t.Errorf("LeverFees = %s, want 1.8", preview.LeverFees)
	}
	if !preview.SwapTotalAmount.Equal(decimal.RequireFromString("298.2")) {
		t.Errorf("SwapTotalAmount = %s, want 298.2", preview.SwapTotalAmount)
	}
	if !preview.MarginLimit.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("MarginLimit = %s", preview.MarginLimit)
	}
}

func TestTradeService_Preview_MissingMarket(t *testing.T) {
	f := newFixture()
	f.markets.params = nil
	svc := f.service()

	pair := testPair("3")
	ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(100), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)

	preview, err := svc.Preview(context.Background(), pair, ti, trader)
	if err != nil || preview != nil {
		t.Errorf("Preview() = %+v, %v, want nil, nil", preview, err)
	}
}

func TestTradeService_Preview_InvalidTrade(t *testing.T) {
	svc := newFixture().service()

	pair := testPair("3")
	ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(100), 1, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)

	_, err := svc.Preview(context.Background(), pair, ti, trader)
	if apperror.GetCode(err) != apperror.CodeInvalidTrade {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidTrade)
	}
}

func TestTradeService_ClosePreview(t *testing.T) {
	f := newFixture()
	f.markets.params.FeesRate = 0
	f.cp.buy[callData("3")] = ether("20")
	svc := f.service()

	pair := testPair("3")
	position := &domain.PositionView{
		Held:    decimal.NewFromInt(10),
		OnChain: domain.OnChainPosition{Held: ether("10"), Borrowed: ether("5")},
	}
	detail := domain.OffChainPositionDetail{Trader: trader, LongToken: domain.Token0, DepositToken: domain.Token1}
	ci := domain.CloseTradeInfo{CloseAmount: decimal.NewFromInt(5), Slippage: decimal.RequireFromString("0.01")}

	preview, err := svc.ClosePreview(context.Background(), pair, ci, position, detail)
	if err != nil {
		t.Fatalf("ClosePreview() error = %v", err)
	}
	if !preview.CloseRatio.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("CloseRatio = %s, want 0.5", preview.CloseRatio)
	}
	if !preview.RepayAmount.Equal(decimal.NewFromBigInt(ether("2.5"), 0)) {
		t.Errorf("RepayAmount = %s", preview.RepayAmount)
	}
	if preview.SwapTotalInWei.Cmp(ether("5")) != 0 {
		t.Errorf("SwapTotalInWei = %s", preview.SwapTotalInWei)
	}
	q, ok := preview.Route.Best()
	if !ok || !q.CloseReturns.Equal(decimal.RequireFromString("17.5")) {
		t.Errorf("best close = %+v", q)
	}

	plan, err := svc.PlanClose(context.Background(), pair, ci, position, detail, preview, "")
	if err != nil {
		t.Fatalf("PlanClose() error = %v", err)
	}
	if plan.CloseHeld.Cmp(ether("5")) != 0 {
		t.Errorf("CloseHeld = %s, want 5e18", plan.CloseHeld)
	}
	if plan.MinOrMaxAmount.Cmp(ether("19.8")) != 0 {
		t.Errorf("MinOrMaxAmount = %s, want 19.8e18", plan.MinOrMaxAmount)
	}
	if !bytes.Equal(plan.CallData, []byte{0xbb}) || plan.To != testChain().OpenLev {
		t.Errorf("plan = %+v", plan)
	}

	t.Run("close amount above held", func(t *testing.T) {
		ci := domain.CloseTradeInfo{CloseAmount: decimal.NewFromInt(11), Slippage: decimal.RequireFromString("0.01")}
		_, err := svc.ClosePreview(context.Background(), pair, ci, position, detail)
		if apperror.GetCode(err) != apperror.CodeInvalidTrade {
			t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidTrade)
		}
	})
}

func TestTradeService_Position_NotFound(t *testing.T) {
	f := newFixture()
	f.positions.pos = &domain.OnChainPosition{Held: new(big.Int)}
	svc := f.service()

	_, err := svc.Position(context.Background(), testPair("3"), domain.Token0, domain.Token1, trader)
	if apperror.GetCode(err) != apperror.CodePositionNotFound {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodePositionNotFound)
	}
}

func TestTradeService_PlanOpen(t *testing.T) {
	pair := testPair("3,21")

	t.Run("native deposit is sent as value", func(t *testing.T) {
		svc := newFixture().service()
		ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), domain.Token1, domain.Token0)

		route := &domain.OpenRoute{Dex: "3"}
		route.Set("3", &domain.TradeQuote{
			Dex:          "3",
			MinBuyAmount: decimal.RequireFromString("1.5"),
			DexCallData:  hexutil.MustDecode(callData("3")),
		})
		preview := &TradePreview{Borrowing: decimal.NewFromInt(2), Dex: "3", Route: route}

		plan, err := svc.PlanOpen(context.Background(), pair, ti, preview, "")
		if err != nil {
			t.Fatalf("PlanOpen() error = %v", err)
		}
		if plan.Deposit.Sign() != 0 || plan.Value.Cmp(ether("1")) != 0 {
			t.Errorf("Deposit = %s, Value = %s", plan.Deposit, plan.Value)
		}
		if plan.Borrow.Cmp(ether("2")) != 0 || plan.MinBuyAmount.Cmp(ether("1.5")) != 0 {
			t.Errorf("Borrow = %s, MinBuyAmount = %s", plan.Borrow, plan.MinBuyAmount)
		}
		if hexutil.Encode(plan.DexData) != "0x0300000002" {
			t.Errorf("DexData = %x", plan.DexData)
		}
		if !bytes.Equal(plan.CallData, []byte{0xaa}) {
			t.Errorf("CallData = %x", plan.CallData)
		}
	})

	t.Run("aggregator swap data is prefixed", func(t *testing.T) {
		f := newFixture()
		f.agg.swap = &SwapData{Data: []byte{0x12, 0x34}}
		f.gas.wei = big.NewInt(5_000_000_000)
		svc := f.service()
		ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(100), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)

		route := &domain.OpenRoute{Dex: domain.AggregatorVenueID}
		route.Set(domain.AggregatorVenueID, &domain.TradeQuote{
			Dex:                  domain.AggregatorVenueID,
			MinBuyAmount:         decimal.NewFromInt(99),
			SwapTotalAmountInWei: ether("298.2"),
		})
		preview := &TradePreview{Borrowing: decimal.NewFromInt(200), Dex: domain.AggregatorVenueID, Route: route}

		plan, err := svc.PlanOpen(context.Background(), pair, ti, preview, "")
		if err != nil {
			t.Fatalf("PlanOpen() error = %v", err)
		}
		if hexutil.Encode(plan.DexData) != "0x15000000021234" {
			t.Errorf("DexData = %x", plan.DexData)
		}
		if plan.Value.Sign() != 0 || plan.Deposit.Cmp(ether("100")) != 0 {
			t.Errorf("Deposit = %s, Value = %s", plan.Deposit, plan.Value)
		}
		if !f.agg.last.GasPriceGwei.Equal(decimal.NewFromInt(5)) || !f.agg.last.SlippagePercent.Equal(decimal.NewFromInt(1)) {
			t.Errorf("swap request = %+v", f.agg.last)
		}
		if f.agg.last.From != testChain().OpenLev || f.agg.last.Amount.Cmp(ether("298.2")) != 0 {
			t.Errorf("swap request = %+v", f.agg.last)
		}
	})

	t.Run("unknown venue", func(t *testing.T) {
		svc := newFixture().service()
		ti := domain.NewOpenTradeInfo(pair, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), domain.Token0, domain.Token1)
		preview := &TradePreview{Dex: "3", Route: &domain.OpenRoute{}}

		_, err := svc.PlanOpen(context.Background(), pair, ti, preview, "15")
		if apperror.GetCode(err) != apperror.CodeUnknownVenue {
			t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeUnknownVenue)
		}
	})
}

func TestTradeService_PlanClose(t *testing.T) {
	pair := testPair("3,21")
	ci := domain.CloseTradeInfo{Slippage: decimal.RequireFromString("0.01")}
	position := &domain.PositionView{OnChain: domain.OnChainPosition{Held: ether("10")}}

	closeRoute := func(dex string, q *domain.CloseQuote) *domain.CloseRoute {
		r := &domain.CloseRoute{Dex: dex}
		r.Set(dex, q)
		return r
	}

	tests := []struct {
		name      string
		long      domain.Side
		dep       domain.Side
		ratio     string
		quote     *domain.CloseQuote
		wantHeld  *big.Int
		wantLimit *big.Int
	}{
		{
			name:      "partial close bounds the buy back",
			long:      domain.Token0,
			dep:       domain.Token1,
			ratio:     "0.5",
			quote:     &domain.CloseQuote{Dex: "3", MinBuyAmount: decimal.RequireFromString("7.25"), DexCallData: hexutil.MustDecode(callData("3"))},
			wantHeld:  ether("5"),
			wantLimit: ether("7.25"),
		},
		{
			name:      "full close in the deposit token bounds the sell",
			long:      domain.Token1,
			dep:       domain.Token1,
			ratio:     "1",
			quote:     &domain.CloseQuote{Dex: "3", MaxSellAmount: decimal.RequireFromString("4.5"), DexCallData: hexutil.MustDecode(callData("3"))},
			wantHeld:  ether("10"),
			wantLimit: ether("4.5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFixture().service()
			detail := domain.OffChainPositionDetail{LongToken: tt.long, DepositToken: tt.dep}
			preview := &ClosePreview{
				CloseRatio: decimal.RequireFromString(tt.ratio),
				Dex:        "3",
				Route:      closeRoute("3", tt.quote),
			}

			plan, err := svc.PlanClose(context.Background(), pair, ci, position, detail, preview, "")
			if err != nil {
				t.Fatalf("PlanClose() error = %v", err)
			}
			if plan.CloseHeld.Cmp(tt.wantHeld) != 0 {
				t.Errorf("CloseHeld = %s, want %s", plan.CloseHeld, tt.wantHeld)
			}
			if plan.MinOrMaxAmount.Cmp(tt.wantLimit) != 0 {
				t.Errorf("MinOrMaxAmount = %s, want %s", plan.MinOrMaxAmount, tt.wantLimit)
			}
			if hexutil.Encode(plan.DexData) != "0x0300000002" || !bytes.Equal(plan.CallData, []byte{0xbb}) {
				t.Errorf("DexData = %x, CallData = %x", plan.DexData, plan.CallData)
			}
		})
	}

	t.Run("aggregator sells the long leg", func(t *testing.T) {
		f := newFixture()
		f.agg.swap = &SwapData{Data: []byte{0xab}}
		f.gas.wei = big.NewInt(3_000_000_000)
		svc := f.service()

		detail := domain.OffChainPositionDetail{LongToken: domain.Token0, DepositToken: domain.Token1}
		preview := &ClosePreview{
			CloseRatio:     decimal.NewFromInt(1),
			SwapTotalInWei: ether("10"),
			Dex:            domain.AggregatorVenueID,
			Route:          closeRoute(domain.AggregatorVenueID, &domain.CloseQuote{Dex: domain.AggregatorVenueID, MinBuyAmount: decimal.NewFromInt(19)}),
		}

		plan, err := svc.PlanClose(context.Background(), pair, ci, position, detail, preview, "")
		if err != nil {
			t.Fatalf("PlanClose() error = %v", err)
		}
		if hexutil.Encode(plan.DexData) != "0x1500000002ab" {
			t.Errorf("DexData = %x", plan.DexData)
		}
		if f.agg.last.SellToken != wbnb || f.agg.last.BuyToken != busd || f.agg.last.Amount.Cmp(ether("10")) != 0 {
			t.Errorf("swap request = %+v", f.agg.last)
		}
	})

	t.Run("missing position", func(t *testing.T) {
		svc := newFixture().service()
		preview := &ClosePreview{Dex: "3", Route: &domain.CloseRoute{}}

		_, err := svc.PlanClose(context.Background(), pair, ci, nil, domain.OffChainPositionDetail{}, preview, "")
		if apperror.GetCode(err) != apperror.CodeInvalidInput {
			t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeInvalidInput)
		}
	})
}
