// Package offchain reads the protocol's pair and pool listings.
package offchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/cache"
	"github.com/fd1az/margin-router/internal/circuitbreaker"
	"github.com/fd1az/margin-router/internal/httpclient"
	"github.com/fd1az/margin-router/internal/logger"
)

const (
	tracerName      = "offchain"
	httpTimeout     = 10 * time.Second
	userAgent       = "margin-router/offchain"
	defaultCacheTTL = time.Minute

	pairsKey = "pairs"
	poolsKey = "pools"
)

// Config holds the listing endpoints. An empty PoolsURL means the chain
// publishes no pool listing.
type Config struct {
	PairsURL string
	PoolsURL string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// PairListing is one entry of the pairs listing.
type PairListing struct {
	Token0         string          `json:"token0"`
	Token1         string          `json:"token1"`
	Token0Symbol   string          `json:"token0Symbol"`
	Token1Symbol   string          `json:"token1Symbol"`
	Token0Decimals uint8           `json:"token0Decimals"`
	Token1Decimals uint8           `json:"token1Decimals"`
	Pool0          string          `json:"pool0"`
	Pool1          string          `json:"pool1"`
	DexPair        string          `json:"dexPair"`
	DexNames       string          `json:"dexNames"`
	Token0USD      decimal.Decimal `json:"token0Usd"`
	Token1USD      decimal.Decimal `json:"token1Usd"`
	Price          decimal.Decimal `json:"price"`
	Leverage       decimal.Decimal `json:"leverage"`
	IsTaxToken     bool            `json:"isTaxToken"`
	IsOnlyLong     bool            `json:"isOnlyLong"`
	Volume         string          `json:"volume"`
	LiquidityOne   string          `json:"liquidityOne"`
	LiquidityTwo   string          `json:"liquidityTwo"`
}

// Symbol is the listing's TOKEN0/TOKEN1 name.
func (l PairListing) Symbol() string {
	return l.Token0Symbol + "/" + l.Token1Symbol
}

// Matches reports whether a and b name this pair's legs, by symbol or
// address, in either order.
func (l PairListing) Matches(a, b string) bool {
	is := func(ref, symbol string, addr common.Address) bool {
		if common.IsHexAddress(ref) {
			return common.HexToAddress(ref) == addr
		}
		return strings.EqualFold(ref, symbol)
	}
	t0, t1 := common.HexToAddress(l.Token0), common.HexToAddress(l.Token1)
	return (is(a, l.Token0Symbol, t0) && is(b, l.Token1Symbol, t1)) ||
		(is(a, l.Token1Symbol, t1) && is(b, l.Token0Symbol, t0))
}

// ToPair builds the routing pair. DexNames carries the priority-ordered
// venue ids.
func (l PairListing) ToPair(reg *asset.Registry, chainID uint64, marketID uint16, slippage decimal.Decimal) (domain.Pair, error) {
	for _, addr := range []string{l.Token0, l.Token1} {
		if !common.IsHexAddress(addr) {
			return domain.Pair{}, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext(fmt.Sprintf("listing token %q", addr)))
		}
	}

	t0, err := reg.Resolve(chainID, common.HexToAddress(l.Token0), l.Token0Symbol, l.Token0Decimals)
	if err != nil {
		return domain.Pair{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	t1, err := reg.Resolve(chainID, common.HexToAddress(l.Token1), l.Token1Symbol, l.Token1Decimals)
	if err != nil {
		return domain.Pair{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}

	p := domain.Pair{
		MarketID:  marketID,
		Token0:    t0,
		Token1:    t1,
		Pool0:     common.HexToAddress(l.Pool0),
		Pool1:     common.HexToAddress(l.Pool1),
		Slippage:  slippage,
		DexData:   l.DexNames,
		Token0USD: l.Token0USD,
		Token1USD: l.Token1USD,
	}
	if err := p.Validate(); err != nil {
		return domain.Pair{}, err
	}
	return p, nil
}

// PoolListing is one entry of the pool interest listing.
type PoolListing struct {
	PoolName            string          `json:"poolName"`
	PoolAddress         string          `json:"poolAddress"`
	Token0Name          string          `json:"token0Name"`
	Token0Address       string          `json:"token0Address"`
	Token0Price         decimal.Decimal `json:"token0Price"`
	Token1Name          string          `json:"token1Name"`
	Token1Address       string          `json:"token1Address"`
	Token1Price         decimal.Decimal `json:"token1Price"`
	TVL                 decimal.Decimal `json:"tvl"`
	CurrentSupply       decimal.Decimal `json:"currentSupply"`
	CurrentBorrow       decimal.Decimal `json:"currentBorrow"`
	Utilization         decimal.Decimal `json:"utilization"`
	MaxLTV              decimal.Decimal `json:"maxLTV"`
	AvailableToBorrow   decimal.Decimal `json:"availableToBorrow"`
	AvailableToWithdraw decimal.Decimal `json:"availableToWithdraw"`
	LendInterestRate    decimal.Decimal `json:"lendInterestRate"`
	BorrowInterestRate  decimal.Decimal `json:"borrowInterestRate"`
	RecordDate          string          `json:"recordDate"`
}

// Client fetches and caches the listings.
type Client struct {
	client httpclient.Client
	config Config
	pairs  *cache.Cache[string, []PairListing]
	pools  *cache.Cache[string, []PoolListing]
	cb     *circuitbreaker.CircuitBreaker[*httpclient.Response]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewClient creates a listing client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.PairsURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("pairs listing url is required"))
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("openleverage-api"),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer),
		httpclient.WithUserAgent(userAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
		pairs:  cache.New[string, []PairListing](cfg.CacheTTL),
		pools:  cache.New[string, []PoolListing](cfg.CacheTTL),
		cb:     circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("offchain")),
		logger: log,
		tracer: tracer,
	}, nil
}

// Pairs returns the pair listing.
func (c *Client) Pairs(ctx context.Context) ([]PairListing, error) {
	if cached, ok := c.pairs.Get(ctx, pairsKey); ok {
		return cached, nil
	}

	var result []PairListing
	if err := c.fetch(ctx, "pairs", c.config.PairsURL, &result); err != nil {
		return nil, err
	}

	c.pairs.Set(ctx, pairsKey, result, c.config.CacheTTL)
	c.logger.Debug(ctx, "fetched pair listing", "pairs", len(result))
	return result, nil
}

// FindPair returns the listing whose legs are a and b, each a symbol or
// an address.
func (c *Client) FindPair(ctx context.Context, a, b string) (*PairListing, error) {
	pairs, err := c.Pairs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pairs {
		if pairs[i].Matches(a, b) {
			return &pairs[i], nil
		}
	}
	return nil, apperror.NotFound(apperror.CodeMarketNotFound, fmt.Sprintf("no listed pair %s/%s", a, b))
}

// Pools returns the pool interest listing.
func (c *Client) Pools(ctx context.Context) ([]PoolListing, error) {
	if c.config.PoolsURL == "" {
		return nil, apperror.NotFound(apperror.CodeNotFound, "chain has no pool listing")
	}
	if cached, ok := c.pools.Get(ctx, poolsKey); ok {
		return cached, nil
	}

	var result []PoolListing
	if err := c.fetch(ctx, "pools", c.config.PoolsURL, &result); err != nil {
		return nil, err
	}

	c.pools.Set(ctx, poolsKey, result, c.config.CacheTTL)
	c.logger.Debug(ctx, "fetched pool listing", "pools", len(result))
	return result, nil
}

// Close stops the cache janitors and drops idle connections.
func (c *Client) Close() {
	c.pairs.Close()
	c.pools.Close()
	c.client.CloseIdleConnections()
}

func (c *Client) fetch(ctx context.Context, listing, url string, result any) error {
	ctx, span := c.tracer.Start(ctx, "offchain."+listing,
		trace.WithAttributes(attribute.String("url", url)),
	)
	defer span.End()

	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("listing", listing)),
		).
			SetResult(result).
			Get(ctx, url)
	})
	if err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeOffchainListingFailed,
			apperror.WithCause(err),
			apperror.WithOperation(listing))
	}
	return nil
}
