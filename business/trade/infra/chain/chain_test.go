package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

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

type fakeNode struct {
	price   *big.Int
	chainID *big.Int
	err     error
	calls   atomic.Int32
}

func (f *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.price), nil
}

func (f *fakeNode) ChainID(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chainID, nil
}

func newOracle(t *testing.T, node *fakeNode, cfg GasOracleConfig) *GasOracle {
	t.Helper()
	g, err := NewGasOracle(node, cfg, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Close)
	return g
}

func TestGasOracle_GasPrice(t *testing.T) {
	tests := []struct {
		name  string
		price int64
		want  int64
	}{
		{name: "passes through", price: 3_000_000_000, want: 3_000_000_000},
		{name: "clamped at max", price: 900_000_000_000, want: 500_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &fakeNode{price: big.NewInt(tt.price)}
			g := newOracle(t, node, DefaultGasOracleConfig())

			got, err := g.GasPrice(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got.Int64() != tt.want {
				t.Errorf("GasPrice = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestGasOracle_Caches(t *testing.T) {
	node := &fakeNode{price: big.NewInt(5_000_000_000)}
	g := newOracle(t, node, GasOracleConfig{CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := g.GasPrice(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if node.calls.Load() != 1 {
		t.Errorf("node called %d times, want 1", node.calls.Load())
	}
}

func TestGasOracle_RPCError(t *testing.T) {
	node := &fakeNode{err: errors.New("connection refused")}
	g := newOracle(t, node, DefaultGasOracleConfig())

	_, err := g.GasPrice(context.Background())
	if !errors.Is(err, apperror.New(apperror.CodeEthereumRPCError)) {
		t.Errorf("err = %v, want ETHEREUM_RPC_ERROR", err)
	}
}

func TestReachabilityCheck(t *testing.T) {
	tests := []struct {
		name    string
		node    *fakeNode
		healthy bool
		detail  string
	}{
		{name: "right chain", node: &fakeNode{chainID: big.NewInt(56)}, healthy: true, detail: "chain 56"},
		{name: "wrong chain", node: &fakeNode{chainID: big.NewInt(1)}, detail: "serves chain 1"},
		{name: "down", node: &fakeNode{err: errors.New("dial tcp: refused")}, detail: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := ReachabilityCheck(tt.node, 56, time.Second)(context.Background())
			if ok != tt.healthy || !strings.Contains(msg, tt.detail) {
				t.Errorf("check = %v %q, want %v containing %q", ok, msg, tt.healthy, tt.detail)
			}
		})
	}
}
