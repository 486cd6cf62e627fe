package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	wbnb = common.HexToAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	busd = common.HexToAddress("0xe9e7cea3dedca5984780bafc599bd69add087d56")
)

func testChain() ChainParams {
	return ChainParams{
		ChainID:        56,
		BlocksPerYear:  10512000,
		OpenLev:        common.HexToAddress("0x6a75ac4b8d8e76d15502e69be4cb6325422833b4"),
		NativeToken:    wbnb,
		NativeDecimals: 18,
		USDT:           busd,
		USDTDecimals:   18,
		TWAP:           domain.TWAPWindow,
	}
}

func testPair(dexData string) domain.Pair {
	return domain.Pair{
		MarketID:  16,
		Token0:    asset.NewAsset(asset.NewTokenAssetID(56, wbnb), "WBNB", 18),
		Token1:    asset.NewAsset(asset.NewTokenAssetID(56, busd), "BUSD", 18),
		Pool0:     common.HexToAddress("0xdf64aa7abab1ded9823424b7e6b5d5c9bfeca26b"),
		Pool1:     common.HexToAddress("0xa9c04be222819d2123ad522c714b869b5442647c"),
		Slippage:  decimal.RequireFromString("0.01"),
		DexData:   dexData,
		Token0USD: decimal.NewFromInt(2),
		Token1USD: decimal.NewFromInt(1),
	}
}

// ether returns v × 10^18.
func ether(v string) *big.Int {
	return decimal.RequireFromString(v).Shift(18).BigInt()
}

// fakeOracle prices WBNB in BUSD, which is both the pair price and the
// native token price on BNB Chain.
type fakeOracle struct {
	price   decimal.Decimal
	byVenue map[string]decimal.Decimal
	err     error
}

func (f *fakeOracle) SpotPrice(_ context.Context, _, _ common.Address, _, _ int32, venue domain.Venue) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	if p, ok := f.byVenue[venue.ID]; ok {
		return p, nil
	}
	return f.price, nil
}

type fakeFees struct {
	rates map[common.Address]map[domain.TransferFeeKind]uint32
}

func (f *fakeFees) TransferFeeRate(_ context.Context, _ uint16, token common.Address, kind domain.TransferFeeKind) (uint32, error) {
	return f.rates[token][kind], nil
}

type fakeMarkets struct {
	params *domain.MarketParams
}

func (f *fakeMarkets) Market(context.Context, uint16) (*domain.MarketParams, error) {
	return f.params, nil
}

// fakeCP answers constant-product quotes by venue call data.
type fakeCP struct {
	buy  map[string]*big.Int
	sell map[string]*big.Int
	err  error
	reqs []ConstantProductRequest
}

func (f *fakeCP) QuoteBuy(_ context.Context, req ConstantProductRequest) (*big.Int, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.buy[hexutil.Encode(req.CallData)], nil
}

func (f *fakeCP) QuoteSell(_ context.Context, req ConstantProductRequest) (*big.Int, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.sell[hexutil.Encode(req.CallData)], nil
}

type fakeCL struct {
	in  map[uint32]*big.Int
	out map[uint32]*big.Int
}

func (f *fakeCL) QuoteExactIn(_ context.Context, _, _ common.Address, fee uint32, _ *big.Int) (*big.Int, error) {
	return f.in[fee], nil
}

func (f *fakeCL) QuoteExactOut(_ context.Context, _, _ common.Address, fee uint32, _ *big.Int) (*big.Int, error) {
	return f.out[fee], nil
}

type fakeAggregator struct {
	quote *domain.AggregatorQuote
	swap  *SwapData
	err   error
	last  SwapRequest
}

func (f *fakeAggregator) Quote(context.Context, common.Address, common.Address, *big.Int) (*domain.AggregatorQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeAggregator) Swap(_ context.Context, req SwapRequest) (*SwapData, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.swap, nil
}

type fakeGas struct {
	wei *big.Int
}

func (f *fakeGas) GasPrice(context.Context) (*big.Int, error) {
	if f.wei == nil {
		return new(big.Int), nil
	}
	return f.wei, nil
}

// fakeShares keeps shares 1:1 with balances.
type fakeShares struct{}

func (fakeShares) ShareSupply(context.Context, common.Address) (*domain.ShareSupply, error) {
	return &domain.ShareSupply{TotalBalance: ether("1000"), TotalShares: ether("1000")}, nil
}

type fakePools struct {
	rate      *big.Int
	available *big.Int
	stored    *big.Int
	current   *big.Int
}

func (f *fakePools) BorrowRatePerBlock(context.Context, common.Address) (*big.Int, error) {
	return orZero(f.rate), nil
}

func (f *fakePools) AvailableForBorrow(context.Context, common.Address) (*big.Int, error) {
	return orZero(f.available), nil
}

func (f *fakePools) BorrowBalanceStored(context.Context, common.Address, common.Address) (*big.Int, error) {
	return orZero(f.stored), nil
}

func (f *fakePools) BorrowBalanceCurrent(context.Context, common.Address, common.Address) (*big.Int, error) {
	return orZero(f.current), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

type fakeLiquidity struct {
	reserves *PairReserves
}

func (f *fakeLiquidity) Reserves(context.Context, common.Address, common.Address, common.Address) (*PairReserves, error) {
	return f.reserves, nil
}

type fakeHistory struct {
	snap *domain.PriceSnapshot
}

func (f *fakeHistory) AveragePrices(context.Context, uint16, common.Address, common.Address, time.Duration, []byte) (*domain.PriceSnapshot, error) {
	if f.snap == nil {
		return nil, errors.New("no history")
	}
	return f.snap, nil
}

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time { return f.now }

type fakePositions struct {
	pos *domain.OnChainPosition
}

func (f *fakePositions) TraderPosition(context.Context, uint16, common.Address, domain.Side, []byte) (*domain.OnChainPosition, error) {
	return f.pos, nil
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeMarginTrade(*OpenPlan) ([]byte, error) { return []byte{0xaa}, nil }
func (fakeEncoder) EncodeCloseTrade(*ClosePlan) ([]byte, error) { return []byte{0xbb}, nil }

// callData returns the hex call data of a venue id on BNB Chain.
func callData(id string) string {
	v, err := domain.ParseVenue(id, 56)
	if err != nil {
		panic(err)
	}
	return hexutil.Encode(v.CallData)
}
