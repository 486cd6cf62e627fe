package univ3

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/margin-router/business/trade/infra/evm/evmtest"
	"github.com/fd1az/margin-router/internal/apperror"
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
	quoterAddr = common.HexToAddress("0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6")
	weth       = common.HexToAddress("0x82af49447d8a07e3bd95bd0d56f35241523fbab1")
	usdc       = common.HexToAddress("0xaf88d065e77c8cc2239327c5edb3a432268e5831")
)

func newProvider(t *testing.T, caller *evmtest.Caller) *Provider {
	t.Helper()
	p, err := NewProvider(caller, quoterAddr, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProvider_QuoteExactIn(t *testing.T) {
	caller := evmtest.NewCaller()
	caller.Handle(quoterAddr, QuoterABI, "quoteExactInputSingle", func(args []any) ([]any, error) {
		if args[0].(common.Address) != weth || args[1].(common.Address) != usdc {
			t.Errorf("tokens = %v %v", args[0], args[1])
		}
		if args[2].(*big.Int).Int64() != FeeTier005 {
			t.Errorf("fee = %v, want %d", args[2], FeeTier005)
		}
		if args[4].(*big.Int).Sign() != 0 {
			t.Errorf("sqrtPriceLimitX96 = %v, want 0", args[4])
		}
		// 1 WETH -> 2500 USDC
		return []any{new(big.Int).Div(new(big.Int).Mul(args[3].(*big.Int), big.NewInt(2500_000000)), big.NewInt(1e18))}, nil
	})
	p := newProvider(t, caller)

	got, err := p.QuoteExactIn(context.Background(), weth, usdc, FeeTier005, big.NewInt(1e18))
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 2500_000000 {
		t.Errorf("QuoteExactIn = %s, want 2500000000", got)
	}
}

func TestProvider_QuoteExactOut(t *testing.T) {
	caller := evmtest.NewCaller()
	caller.Handle(quoterAddr, QuoterABI, "quoteExactOutputSingle", evmtest.Returns(big.NewInt(4001)))
	p := newProvider(t, caller)

	got, err := p.QuoteExactOut(context.Background(), usdc, weth, FeeTier030, big.NewInt(4000))
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 4001 {
		t.Errorf("QuoteExactOut = %s, want 4001", got)
	}

	calls := caller.Calls()
	if len(calls) != 1 || calls[0].Args[3].(*big.Int).Int64() != 4000 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestProvider_QuoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		fee    uint32
		amount *big.Int
		want   apperror.Code
	}{
		{name: "zero fee", fee: 0, amount: big.NewInt(1), want: apperror.CodeInvalidInput},
		{name: "fee overflows uint24", fee: 1 << 24, amount: big.NewInt(1), want: apperror.CodeInvalidInput},
		{name: "zero amount", fee: FeeTier030, amount: big.NewInt(0), want: apperror.CodeInvalidInput},
		{name: "nil amount", fee: FeeTier030, want: apperror.CodeInvalidInput},
		{name: "pool missing", fee: FeeTier100, amount: big.NewInt(1), want: apperror.CodeContractCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := evmtest.NewCaller()
			caller.Handle(quoterAddr, QuoterABI, "quoteExactInputSingle", evmtest.Reverts(""))
			p := newProvider(t, caller)

			_, err := p.QuoteExactIn(context.Background(), weth, usdc, tt.fee, tt.amount)
			if !errors.Is(err, apperror.New(tt.want)) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}
