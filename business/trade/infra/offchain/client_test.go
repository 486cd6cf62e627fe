package offchain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/internal/apperror"
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

const pairsJSON = `[
	{
		"token0": "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		"token1": "0x55d398326f99059fF775485246999027B3197955",
		"token0Symbol": "WBNB",
		"token1Symbol": "USDT",
		"token0Decimals": 18,
		"token1Decimals": 18,
		"pool0": "0x4Bd3F5C4bb1fE2e8d6B2E0A6dD1d49bA2fD5E2C1",
		"pool1": "0x5A2D0b1b1B4E8a8F9F3bC0b5E1F6b0D5e2F7c8A9",
		"dexNames": "3,21",
		"token0Usd": 312.45,
		"token1Usd": 1,
		"price": 312.45,
		"leverage": 3
	},
	{
		"token0": "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82",
		"token1": "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		"token0Symbol": "CAKE",
		"token1Symbol": "WBNB",
		"token0Decimals": 18,
		"token1Decimals": 18,
		"pool0": "",
		"pool1": "",
		"dexNames": "3"
	}
]`

const poolsJSON = `[
	{
		"poolName": "WBNB/USDT",
		"poolAddress": "0x4Bd3F5C4bb1fE2e8d6B2E0A6dD1d49bA2fD5E2C1",
		"token0Name": "WBNB",
		"token1Name": "USDT",
		"utilization": 0.62,
		"borrowInterestRate": 7.5,
		"availableToBorrow": 1200.5
	}
]`

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/api/trade/pairs":
			w.Write([]byte(pairsJSON))
		case "/api/info/pools/interest":
			w.Write([]byte(poolsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := NewClient(cfg, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClient_PairsCached(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := newClient(t, Config{PairsURL: srv.URL + "/api/trade/pairs"})

	for i := 0; i < 3; i++ {
		pairs, err := c.Pairs(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(pairs) != 2 || pairs[0].Symbol() != "WBNB/USDT" {
			t.Fatalf("pairs = %+v", pairs)
		}
		if !pairs[0].Token0USD.Equal(decimal.RequireFromString("312.45")) {
			t.Errorf("token0Usd = %s", pairs[0].Token0USD)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("listing fetched %d times, want 1", hits.Load())
	}
}

func TestClient_FindPair(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := newClient(t, Config{PairsURL: srv.URL + "/api/trade/pairs"})

	tests := []struct {
		name  string
		a, b  string
		want  string
		found bool
	}{
		{name: "symbols", a: "WBNB", b: "USDT", want: "WBNB/USDT", found: true},
		{name: "reversed and lower case", a: "usdt", b: "wbnb", want: "WBNB/USDT", found: true},
		{name: "address and symbol", a: "0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82", b: "WBNB", want: "CAKE/WBNB", found: true},
		{name: "unknown", a: "WBNB", b: "DOGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FindPair(context.Background(), tt.a, tt.b)
			if !tt.found {
				if !errors.Is(err, apperror.New(apperror.CodeMarketNotFound)) {
					t.Errorf("err = %v, want MARKET_NOT_FOUND", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Symbol() != tt.want {
				t.Errorf("FindPair = %s, want %s", got.Symbol(), tt.want)
			}
		})
	}
}

func TestPairListing_ToPair(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := newClient(t, Config{PairsURL: srv.URL + "/api/trade/pairs"})

	pairs, err := c.Pairs(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	reg := asset.NewRegistry()
	p, err := pairs[0].ToPair(reg, 56, 1, decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatal(err)
	}
	if p.MarketID != 1 || p.Token0.Symbol() != "WBNB" || p.Decimals(1) != 18 {
		t.Errorf("pair = %s", p)
	}
	if p.DefaultVenueID() != "3" || !p.HasVenue("21") {
		t.Errorf("venues = %v", p.VenueIDs())
	}
	if p.Pool0 != common.HexToAddress("0x4Bd3F5C4bb1fE2e8d6B2E0A6dD1d49bA2fD5E2C1") {
		t.Errorf("pool0 = %s", p.Pool0.Hex())
	}

	bad := pairs[0]
	bad.Token1 = "not-an-address"
	if _, err := bad.ToPair(reg, 56, 1, decimal.Zero); !errors.Is(err, apperror.New(apperror.CodeInvalidInput)) {
		t.Errorf("bad token err = %v, want INVALID_INPUT", err)
	}

	clash := pairs[0]
	clash.Token0Decimals = 8
	if _, err := clash.ToPair(reg, 56, 1, decimal.Zero); !errors.Is(err, apperror.New(apperror.CodeInvalidInput)) {
		t.Errorf("decimals clash err = %v, want INVALID_INPUT", err)
	}
}

func TestClient_Pools(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)

	c := newClient(t, Config{
		PairsURL: srv.URL + "/api/trade/pairs",
		PoolsURL: srv.URL + "/api/info/pools/interest",
	})
	pools, err := c.Pools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pools) != 1 || !pools[0].BorrowInterestRate.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("pools = %+v", pools)
	}

	noPools := newClient(t, Config{PairsURL: srv.URL + "/api/trade/pairs"})
	if _, err := noPools.Pools(context.Background()); !errors.Is(err, apperror.New(apperror.CodeNotFound)) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestClient_ListingFailure(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	c := newClient(t, Config{PairsURL: srv.URL + "/missing"})

	if _, err := c.Pairs(context.Background()); !errors.Is(err, apperror.New(apperror.CodeOffchainListingFailed)) {
		t.Errorf("err = %v, want OFFCHAIN_LISTING_FAILED", err)
	}
}
