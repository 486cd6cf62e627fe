// Package dexagg quotes constant-product venues and reads spot prices
// through the protocol's dex aggregator contract, and reads V2 pair
// reserves for the liquidity guard.
package dexagg

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/evm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
	"github.com/fd1az/margin-router/internal/logger"
)

var (
	_ app.ConstantProductQuoter = (*Provider)(nil)
	_ app.SpotPriceOracle       = (*Provider)(nil)
	_ app.PairLiquidityReader   = (*Provider)(nil)
)

// Provider talks to the dex aggregator and to V2 factories and pairs.
type Provider struct {
	aggregator common.Address
	contract   *evm.Contract
	factory    *evm.Contract
	pair       *evm.Contract
	logger     logger.LoggerInterface
}

// NewProvider binds the dex aggregator at address.
func NewProvider(caller evm.ContractCaller, address common.Address, log logger.LoggerInterface) (*Provider, error) {
	contract, err := evm.NewContract("dex-aggregator", DexAggregatorABI, caller)
	if err != nil {
		return nil, err
	}
	factory, err := evm.NewContract("v2-factory", V2FactoryABI, caller)
	if err != nil {
		return nil, err
	}
	pair, err := evm.NewContract("v2-pair", V2PairABI, caller)
	if err != nil {
		return nil, err
	}

	return &Provider{
		aggregator: address,
		contract:   contract,
		factory:    factory,
		pair:       pair,
		logger:     log,
	}, nil
}

// QuoteBuy returns how much BuyToken selling Amount of SellToken yields.
func (p *Provider) QuoteBuy(ctx context.Context, req app.ConstantProductRequest) (*big.Int, error) {
	return p.quote(ctx, "calBuyAmount", req)
}

// QuoteSell returns how much SellToken must be sold to receive Amount of
// BuyToken.
func (p *Provider) QuoteSell(ctx context.Context, req app.ConstantProductRequest) (*big.Int, error) {
	return p.quote(ctx, "calSellAmount", req)
}

func (p *Provider) quote(ctx context.Context, method string, req app.ConstantProductRequest) (*big.Int, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(method+": amount must be positive"))
	}

	out, err := p.contract.CallBig(ctx, p.aggregator, method,
		req.BuyToken,
		req.SellToken,
		new(big.Int).SetUint64(uint64(req.BuyTax)),
		new(big.Int).SetUint64(uint64(req.SellTax)),
		req.Amount,
		req.CallData,
	)
	if err != nil {
		return nil, err
	}

	p.logger.Debug(ctx, "constant-product quote",
		"method", method,
		"buy_token", req.BuyToken.Hex(),
		"sell_token", req.SellToken.Hex(),
		"amount", req.Amount.String(),
		"result", out.String(),
	)
	return out, nil
}

// SpotPrice returns tokenA priced in tokenB, in human units, as read
// through venue.
func (p *Provider) SpotPrice(ctx context.Context, tokenA, tokenB common.Address, decimalsA, decimalsB int32, venue domain.Venue) (decimal.Decimal, error) {
	if venue.Class == domain.Aggregator {
		return decimal.Zero, apperror.New(apperror.CodeUnknownVenue,
			apperror.WithVenue(venue.ID),
			apperror.WithContext("aggregator has no on-chain price"))
	}

	out, err := p.contract.Call(ctx, p.aggregator, "getPrice", tokenA, tokenB, venue.CallData)
	if err != nil {
		return decimal.Zero, apperror.Annotate(err, apperror.CodeContractCallFailed, venue.ID, "price")
	}
	price, err := evm.BigAt(out, 0, "getPrice")
	if err != nil {
		return decimal.Zero, err
	}
	decimals, ok := out[1].(uint8)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeABIError,
			apperror.WithContext(fmt.Sprintf("getPrice: decimals is %T", out[1])))
	}

	return fixedpoint.BigToDecimal(price).Shift(decimalsA - decimalsB - int32(decimals)), nil
}

// Reserves resolves the tokenA/tokenB pair of factory. A pair that was
// never created is (nil, nil).
func (p *Provider) Reserves(ctx context.Context, factory, tokenA, tokenB common.Address) (*app.PairReserves, error) {
	out, err := p.factory.Call(ctx, factory, "getPair", tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	pairAddr, err := evm.AddressAt(out, 0, "getPair")
	if err != nil {
		return nil, err
	}
	if pairAddr == (common.Address{}) {
		return nil, nil
	}

	out, err = p.pair.Call(ctx, pairAddr, "getReserves")
	if err != nil {
		return nil, err
	}
	r0, err := evm.BigAt(out, 0, "getReserves")
	if err != nil {
		return nil, err
	}
	r1, err := evm.BigAt(out, 1, "getReserves")
	if err != nil {
		return nil, err
	}

	return &app.PairReserves{Pair: pairAddr, Reserve0: r0, Reserve1: r1}, nil
}
