// Package oneinch quotes swaps and fetches executable swap data from the
// protocol's 1inch proxy.
package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/circuitbreaker"
	"github.com/fd1az/margin-router/internal/httpclient"
	"github.com/fd1az/margin-router/internal/logger"
	"github.com/fd1az/margin-router/internal/ratelimit"
)

const (
	tracerName  = "oneinch"
	httpTimeout = 10 * time.Second
	userAgent   = "margin-router/oneinch"
)

var _ app.AggregatorQuoter = (*Client)(nil)

// Config holds the proxy endpoints.
type Config struct {
	QuoteURL string
	SwapURL  string
	// RequestsPerMinute paces both endpoints together. Zero disables
	// pacing.
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client implements AggregatorQuoter over HTTP.
type Client struct {
	client  httpclient.Client
	config  Config
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[*httpclient.Response]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewClient creates a 1inch proxy client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.QuoteURL == "" || cfg.SwapURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("aggregator quote and swap urls are required"))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("1inch"),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceResponse),
		httpclient.WithUserAgent(userAgent),
		httpclient.WithMaxConnsPerHost(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Client{
		client:  client,
		config:  cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cb:      circuitbreaker.New[*httpclient.Response](circuitbreaker.DefaultConfig("1inch")),
		logger:  log,
		tracer:  tracer,
	}, nil
}

// TokenInfo is the token block of a quote response.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// QuoteResponse is the proxy's quote answer.
type QuoteResponse struct {
	FromToken TokenInfo       `json:"fromToken"`
	ToToken   TokenInfo       `json:"toToken"`
	ToAmount  string          `json:"toAmount"`
	Gas       uint64          `json:"gas"`
	Protocols json.RawMessage `json:"protocols,omitempty"`
}

// SwapResponse is the proxy's swap answer.
type SwapResponse struct {
	ToAmount string `json:"toAmount"`
	Tx       struct {
		Data string `json:"data"`
	} `json:"tx"`
}

// APIError is the error body the proxy forwards from 1inch.
type APIError struct {
	StatusCode  int    `json:"statusCode"`
	Err         string `json:"error"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("1inch error %d: %s %s", e.StatusCode, e.Err, e.Description)
}

// Quote asks how much buyToken amount of sellToken buys.
func (c *Client) Quote(ctx context.Context, sellToken, buyToken common.Address, amount *big.Int) (*domain.AggregatorQuote, error) {
	ctx, span := c.tracer.Start(ctx, "oneinch.quote",
		trace.WithAttributes(
			attribute.String("src", sellToken.Hex()),
			attribute.String("dst", buyToken.Hex()),
		),
	)
	defer span.End()

	if amount == nil || amount.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("aggregator quote amount must be positive"))
	}

	var result QuoteResponse
	err := c.get(ctx, "quote", c.config.QuoteURL, map[string]string{
		"src":               sellToken.Hex(),
		"dst":               buyToken.Hex(),
		"amount":            amount.String(),
		"includeProtocols":  "true",
		"includeGas":        "true",
		"includeTokensInfo": "true",
	}, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return nil, failure(apperror.CodeAggregatorQuoteFailed, "quote", err)
	}

	toAmount, ok := new(big.Int).SetString(result.ToAmount, 10)
	if !ok || toAmount.Sign() < 0 {
		return nil, apperror.New(apperror.CodeAggregatorQuoteFailed,
			apperror.WithVenue(domain.AggregatorVenueID),
			apperror.WithContext(fmt.Sprintf("toAmount %q", result.ToAmount)))
	}

	span.SetAttributes(
		attribute.String("to_amount", result.ToAmount),
		attribute.Int64("gas", int64(result.Gas)),
	)
	c.logger.Debug(ctx, "aggregator quote",
		"src", sellToken.Hex(),
		"dst", buyToken.Hex(),
		"amount", amount.String(),
		"to_amount", result.ToAmount,
		"gas", result.Gas)

	return &domain.AggregatorQuote{
		ToAmount:     toAmount,
		Gas:          result.Gas,
		FromDecimals: result.FromToken.Decimals,
		ToDecimals:   result.ToToken.Decimals,
	}, nil
}

// Swap fetches the call data swapping req.Amount of SellToken from
// req.From. Gas estimation is disabled since the protocol, not the
// trader, executes it.
func (c *Client) Swap(ctx context.Context, req app.SwapRequest) (*app.SwapData, error) {
	ctx, span := c.tracer.Start(ctx, "oneinch.swap",
		trace.WithAttributes(
			attribute.String("src", req.SellToken.Hex()),
			attribute.String("dst", req.BuyToken.Hex()),
		),
	)
	defer span.End()

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("aggregator swap amount must be positive"))
	}

	var result SwapResponse
	err := c.get(ctx, "swap", c.config.SwapURL, map[string]string{
		"src":             req.SellToken.Hex(),
		"dst":             req.BuyToken.Hex(),
		"amount":          req.Amount.String(),
		"from":            req.From.Hex(),
		"slippage":        req.SlippagePercent.String(),
		"disableEstimate": "true",
		"gasPrice":        req.GasPriceGwei.String(),
	}, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "swap failed")
		return nil, failure(apperror.CodeAggregatorSwapFailed, "swap", err)
	}

	data := common.FromHex(result.Tx.Data)
	if len(data) == 0 {
		return nil, apperror.New(apperror.CodeAggregatorSwapFailed,
			apperror.WithVenue(domain.AggregatorVenueID),
			apperror.WithOperation("swap"),
			apperror.WithContext("empty tx data"))
	}

	toAmount, ok := new(big.Int).SetString(result.ToAmount, 10)
	if !ok {
		toAmount = new(big.Int)
	}

	return &app.SwapData{Data: data, ToAmount: toAmount}, nil
}

func (c *Client) get(ctx context.Context, endpoint, url string, params map[string]string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}

	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
			httpclient.WithResponseErrorHandler(errorHandler),
		).
			SetQueryParams(params).
			SetResult(result).
			Get(ctx, url)
	})
	return err
}

func failure(code apperror.Code, op string, cause error) error {
	return apperror.New(code,
		apperror.WithCause(cause),
		apperror.WithVenue(domain.AggregatorVenueID),
		apperror.WithOperation(op))
}

// errorHandler surfaces the 1inch error body when there is one.
func errorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Err != "" || apiErr.Description != "") {
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = statusCode
		}
		return apperror.New(apperror.CodeHTTPBadStatus, apperror.WithCause(&apiErr))
	}
	return httpclient.StatusErrorHandler(statusCode, body)
}
