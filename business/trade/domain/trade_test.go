package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
)

func testPair() Pair {
	wbnb := asset.NewAsset(asset.NewTokenAssetID(56, common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")), "WBNB", 18)
	busd := asset.NewAsset(asset.NewTokenAssetID(56, common.HexToAddress("0xe9e7cea3dedca5984780bafc599bd69add087d56")), "BUSD", 18)
	return Pair{
		MarketID:  16,
		Token0:    wbnb,
		Token1:    busd,
		Pool0:     common.HexToAddress("0xdf64aa7abab1ded9823424b7e6b5d5c9bfeca26b"),
		Pool1:     common.HexToAddress("0xa9c04be222819d2123ad522c714b869b5442647c"),
		Slippage:  decimal.RequireFromString("0.1"),
		DexData:   "3, 15,21",
		Token0USD: decimal.RequireFromString("246.05"),
		Token1USD: decimal.NewFromInt(1),
	}
}

func TestPair_VenueIDs(t *testing.T) {
	p := testPair()

	ids := p.VenueIDs()
	if len(ids) != 3 || ids[0] != "3" || ids[1] != "15" || ids[2] != "21" {
		t.Fatalf("VenueIDs() = %v", ids)
	}
	if p.DefaultVenueID() != "3" {
		t.Errorf("DefaultVenueID() = %s", p.DefaultVenueID())
	}
	if !p.HasVenue(AggregatorVenueID) {
		t.Error("expected aggregator venue")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestPair_AmountConversions(t *testing.T) {
	p := testPair()
	p.Token1 = asset.NewAsset(asset.NewTokenAssetID(56, common.HexToAddress("0x55d398326f99059ff775485246999027b3197955")), "USDT", 6)

	amount, err := p.Amount(Token1, decimal.RequireFromString("12.3456789"))
	if err != nil {
		t.Fatalf("Amount: %v", err)
	}
	if amount.Raw().Int64() != 12345678 {
		t.Errorf("Amount(Token1) raw = %s, want 12345678", amount.Raw())
	}
	if amount.String() != "12.345678 USDT" {
		t.Errorf("Amount(Token1) = %s", amount)
	}

	if _, err := p.Amount(Token0, decimal.NewFromInt(-1)); !errors.Is(err, asset.ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}

	if got := p.Human(Token0, big.NewInt(1_500_000_000_000_000_000)); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Human(Token0) = %s, want 1.5", got)
	}
	if got := p.Human(Token1, big.NewInt(2_500_000)); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Human(Token1) = %s, want 2.5", got)
	}
	if got := p.Human(Token1, nil); !got.IsZero() {
		t.Errorf("Human(nil) = %s, want 0", got)
	}
}

func TestNewOpenTradeInfo_Legs(t *testing.T) {
	p := testPair()
	ti := NewOpenTradeInfo(p, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), Token0, Token1)

	if ti.BuyToken != p.Token0.Address() {
		t.Errorf("buy token = %s, want token0", ti.BuyToken.Hex())
	}
	if ti.SellToken != p.Token1.Address() {
		t.Errorf("sell token = %s, want token1", ti.SellToken.Hex())
	}
	if ti.DepositTokenAddress != p.Token1.Address() {
		t.Errorf("deposit token = %s, want token1", ti.DepositTokenAddress.Hex())
	}
	if ti.BorrowSide() != Token1 || ti.LongEqualsDeposit() {
		t.Error("unexpected borrow side")
	}
	if err := ti.Validate(p); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	buy, sell := CloseLegs(p, Token0)
	if buy != p.Token1.Address() || sell != p.Token0.Address() {
		t.Error("close legs must sell the long leg")
	}
}

func TestTradeInfo_Validate(t *testing.T) {
	p := testPair()
	base := NewOpenTradeInfo(p, decimal.NewFromInt(1), 3, decimal.RequireFromString("0.01"), Token1, Token1)

	tests := []struct {
		name   string
		mutate func(*TradeInfo)
	}{
		{name: "level below two", mutate: func(ti *TradeInfo) { ti.Level = 1 }},
		{name: "zero deposit", mutate: func(ti *TradeInfo) { ti.DepositAmount = decimal.Zero }},
		{name: "swapped legs", mutate: func(ti *TradeInfo) { ti.BuyToken, ti.SellToken = ti.SellToken, ti.BuyToken }},
		{name: "bad side", mutate: func(ti *TradeInfo) { ti.LongToken = 2 }},
		{name: "wrong deposit address", mutate: func(ti *TradeInfo) { ti.DepositTokenAddress = common.Address{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ti := base
			tt.mutate(&ti)
			if err := ti.Validate(p); apperror.GetCode(err) != apperror.CodeInvalidTrade {
				t.Errorf("Validate() = %v, want %s", err, apperror.CodeInvalidTrade)
			}
		})
	}
}

func TestRoute_OrderAndReplace(t *testing.T) {
	var r OpenRoute
	r.Set("3", &TradeQuote{Dex: "3"})
	r.Set("15", &TradeQuote{Dex: "15"})
	r.Set("3", &TradeQuote{Dex: "3", Held: decimal.NewFromInt(7)})
	r.Dex = "3"

	if got := r.Venues(); len(got) != 2 || got[0] != "3" || got[1] != "15" {
		t.Fatalf("Venues() = %v", got)
	}
	best, ok := r.Best()
	if !ok || !best.Held.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Best() = %+v, %v", best, ok)
	}
	if _, ok := r.Get("21"); ok {
		t.Error("unexpected venue 21")
	}
}
