// Package evm binds ABI fragments to contract addresses and runs read-only
// calls through a circuit breaker with tracing and metrics.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/circuitbreaker"
)

const (
	tracerName = "evm"
	meterName  = "evm"
)

// ContractCaller executes eth_call. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type contractMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// Contract is an ABI bound to one name. The address is passed per call so
// a single binding serves every deployment of the same interface (pairs,
// pools, tokens).
type Contract struct {
	name   string
	abi    abi.ABI
	caller ContractCaller
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *contractMetrics
}

// NewContract parses abiJSON. name labels spans, metrics and the breaker.
func NewContract(name, abiJSON string, caller ContractCaller) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}

	c := &Contract{
		name:   name,
		abi:    parsed,
		caller: caller,
		cb:     circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig(name)),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return c, nil
}

// MustContract is NewContract for ABIs compiled into the binary.
func MustContract(name, abiJSON string, caller ContractCaller) *Contract {
	c, err := NewContract(name, abiJSON, caller)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &contractMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"contract_calls_total",
		metric.WithDescription("Total read-only contract calls"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"contract_call_errors_total",
		metric.WithDescription("Total failed contract calls"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"contract_call_latency_ms",
		metric.WithDescription("Contract call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ABI returns the parsed ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Pack encodes a call to method.
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s.%s pack", c.name, method)))
	}
	return data, nil
}

// Call runs method on the contract at addr and returns its decoded
// outputs.
func (c *Contract) Call(ctx context.Context, addr common.Address, method string, args ...any) ([]any, error) {
	ctx, span := c.tracer.Start(ctx, c.name+"."+method,
		trace.WithAttributes(
			attribute.String("contract", addr.Hex()),
			attribute.String("method", method),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("contract", c.name),
		attribute.String("method", method),
	)
	start := time.Now()
	c.metrics.calls.Add(ctx, 1, attrs)

	fail := func(err error) ([]any, error) {
		c.metrics.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, method+" failed")
		return nil, err
	}

	callData, err := c.Pack(method, args...)
	if err != nil {
		return fail(err)
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.caller.CallContract(ctx, ethereum.CallMsg{
			To:   &addr,
			Data: callData,
		}, nil)
	})
	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		code := apperror.CodeContractCallFailed
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			code = apperror.CodeCircuitOpen
		}
		return fail(apperror.New(code,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s.%s at %s", c.name, method, addr.Hex()))))
	}

	outputs, err := c.abi.Unpack(method, raw)
	if err != nil {
		return fail(apperror.New(apperror.CodeABIError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s.%s decode", c.name, method))))
	}

	span.SetStatus(codes.Ok, "called")
	return outputs, nil
}

// CallBig runs a method with a single uint output.
func (c *Contract) CallBig(ctx context.Context, addr common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.Call(ctx, addr, method, args...)
	if err != nil {
		return nil, err
	}
	return BigAt(out, 0, c.name+"."+method)
}

// BigAt reads outputs[i] as a uint.
func BigAt(outputs []any, i int, what string) (*big.Int, error) {
	if i >= len(outputs) {
		return nil, decodeError(what, fmt.Sprintf("want output %d, got %d outputs", i, len(outputs)))
	}
	v, ok := outputs[i].(*big.Int)
	if !ok {
		return nil, decodeError(what, fmt.Sprintf("output %d is %T", i, outputs[i]))
	}
	return v, nil
}

// AddressAt reads outputs[i] as an address.
func AddressAt(outputs []any, i int, what string) (common.Address, error) {
	if i >= len(outputs) {
		return common.Address{}, decodeError(what, fmt.Sprintf("want output %d, got %d outputs", i, len(outputs)))
	}
	v, ok := outputs[i].(common.Address)
	if !ok {
		return common.Address{}, decodeError(what, fmt.Sprintf("output %d is %T", i, outputs[i]))
	}
	return v, nil
}

func decodeError(what, reason string) error {
	return apperror.New(apperror.CodeABIError, apperror.WithContext(what+": "+reason))
}
