// Package univ3 quotes single concentrated-liquidity pools through the
// Uniswap V3 quoter.
package univ3

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/infra/evm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/logger"
)

const meterName = "univ3"

// maxFeeTier is the largest value a uint24 fee can hold.
const maxFeeTier = 1<<24 - 1

var _ app.ConcentratedLiquidityQuoter = (*Provider)(nil)

// providerMetrics holds OTEL metric instruments.
type providerMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Provider implements ConcentratedLiquidityQuoter for Uniswap V3.
type Provider struct {
	quoter   common.Address
	contract *evm.Contract
	logger   logger.LoggerInterface
	metrics  *providerMetrics
}

// NewProvider binds the quoter at address.
func NewProvider(caller evm.ContractCaller, quoter common.Address, log logger.LoggerInterface) (*Provider, error) {
	contract, err := evm.NewContract("univ3-quoter", QuoterABI, caller)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		quoter:   quoter,
		contract: contract,
		logger:   log,
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.quotesTotal, err = meter.Int64Counter(
		"univ3_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteLatency, err = meter.Float64Histogram(
		"univ3_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.quoteErrors, err = meter.Int64Counter(
		"univ3_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// QuoteExactIn returns the tokenOut received for amountIn of tokenIn in
// the pool with feeTier.
func (p *Provider) QuoteExactIn(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	return p.quote(ctx, "quoteExactInputSingle", tokenIn, tokenOut, feeTier, amountIn)
}

// QuoteExactOut returns the tokenIn needed to receive amountOut of
// tokenOut in the pool with feeTier.
func (p *Provider) QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, feeTier uint32, amountOut *big.Int) (*big.Int, error) {
	return p.quote(ctx, "quoteExactOutputSingle", tokenIn, tokenOut, feeTier, amountOut)
}

func (p *Provider) quote(ctx context.Context, method string, tokenIn, tokenOut common.Address, feeTier uint32, amount *big.Int) (*big.Int, error) {
	if feeTier == 0 || feeTier > maxFeeTier {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("fee tier %d out of range", feeTier)))
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(method+": amount must be positive"))
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("fee_tier", int(feeTier)),
	)
	start := time.Now()
	p.metrics.quotesTotal.Add(ctx, 1, attrs)

	out, err := p.contract.CallBig(ctx, p.quoter, method,
		tokenIn,
		tokenOut,
		new(big.Int).SetUint64(uint64(feeTier)),
		amount,
		big.NewInt(0), // no price limit
	)
	p.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		p.metrics.quoteErrors.Add(ctx, 1, attrs)
		return nil, err
	}

	p.logger.Debug(ctx, "univ3 quote",
		"method", method,
		"token_in", tokenIn.Hex(),
		"token_out", tokenOut.Hex(),
		"fee_tier", feeTier,
		"amount", amount.String(),
		"result", out.String(),
	)

	return out, nil
}
