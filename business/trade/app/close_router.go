package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
)

// CloseRouteInput is everything the close router needs. SwapTotalInWei is
// in minor units of the long leg, RepayAmount in minor units of the
// borrowed leg.
type CloseRouteInput struct {
	Pair           domain.Pair
	Close          domain.CloseTradeInfo
	LongToken      domain.Side
	DepositToken   domain.Side
	SwapTotalInWei *big.Int
	SellFees       uint32
	BuyFees        uint32
	TxFees         uint32
	RepayAmount    decimal.Decimal
	BuyToken       common.Address
	SellToken      common.Address
}

// OptimalCloseRoute quotes closing a position on every venue of the pair.
//
// The default venue with the largest close returns wins, earlier venues
// keeping ties. A failing aggregator is logged and left out. An aggregator
// that beats the winner both in deposit-leg units and in USD net of gas is
// annotated with OverChange but does not become the chosen venue.
func (r *Router) OptimalCloseRoute(ctx context.Context, in CloseRouteInput) (*domain.CloseRoute, error) {
	if in.SwapTotalInWei == nil || in.SwapTotalInWei.Sign() <= 0 {
		return nil, invariant("close.quote", "", "swap total amount must be positive")
	}

	route := &domain.CloseRoute{}
	bestReturns := decimal.Zero

	for _, id := range in.Pair.VenueIDs() {
		if id == domain.AggregatorVenueID {
			continue
		}
		venue, err := domain.ParseVenue(id, r.chain.ChainID)
		if err != nil {
			return nil, err
		}

		q, err := r.closeDefaultQuote(ctx, in, venue)
		if err != nil {
			return nil, err
		}
		route.Set(id, q)

		if q.CloseReturns.GreaterThan(bestReturns) {
			bestReturns = q.CloseReturns
			route.Dex = id
		}
	}

	if in.Pair.HasVenue(domain.AggregatorVenueID) {
		q, err := r.aggregatorCloseQuote(ctx, in)
		if err != nil {
			r.logger.Error(ctx, "aggregator close quote failed, venue omitted",
				"market", in.Pair.MarketID,
				"error", err,
			)
			return route, nil
		}

		depUSD := in.Pair.USD(in.DepositToken)
		bestUSD := bestReturns.Mul(depUSD)
		aggUSD := q.CloseReturns.Mul(depUSD).Sub(q.Aggregator.GasUSD)

		if q.CloseReturns.GreaterThan(bestReturns) && aggUSD.GreaterThan(bestUSD) {
			q.OverChange = &domain.OverChange{
				Amount: q.CloseReturns.Sub(bestReturns),
				Addr:   in.Pair.Address(in.DepositToken),
				Dex:    route.Dex,
			}
		}
		route.Set(domain.AggregatorVenueID, q)

		r.logger.Debug(ctx, "aggregator close compared",
			"market", in.Pair.MarketID,
			"aggregator_usd", aggUSD.String(),
			"default_usd", bestUSD.String(),
		)
	}

	return route, nil
}

func (r *Router) closeDefaultQuote(ctx context.Context, in CloseRouteInput, venue domain.Venue) (*domain.CloseQuote, error) {
	const op = "close.quote"

	long := in.LongToken
	longDecimals := in.Pair.Decimals(long)
	borrowDecimals := in.Pair.Decimals(long.Other())
	swapWei := fixedpoint.BigToDecimal(in.SwapTotalInWei)
	slippage := domain.ClampSlippage(in.Close.Slippage)

	swapFeesRate := venue.SwapFeesRate()
	ref := referencePrice(ctx, r.oracle, r.logger, in.Pair, venue)

	q := &domain.CloseQuote{
		Dex:                  venue.ID,
		Token0PriceOfToken1:  ref,
		SwapFeesRate:         swapFeesRate,
		DexCallData:          venue.CallData,
		SwapTotalAmountInWei: in.SwapTotalInWei,
	}

	var (
		soldHuman, boughtHuman decimal.Decimal
		err                    error
	)

	if long != in.DepositToken {
		// Sell everything, repay from what is bought.
		boughtWei, qerr := r.quoteVenue(ctx, venue, in, in.SwapTotalInWei, true)
		if qerr != nil {
			return nil, qerr
		}
		bought := fixedpoint.BigToDecimal(boughtWei)
		q.SwapFees = venue.SwapFees(swapWei)

		soldHuman = swapWei.Sub(q.SwapFees).Shift(-longDecimals)
		boughtHuman = bought.Shift(-borrowDecimals)
		q.CloseReturns = bought.Sub(in.RepayAmount).Shift(-borrowDecimals)
		q.MinBuyAmount = boughtHuman.Mul(fixedpoint.One.Sub(slippage))
	} else {
		// Buy back exactly the repayment, keep the rest of the long leg.
		needRepay := domain.AmountBeforeTax(in.RepayAmount, in.TxFees)
		soldWei, qerr := r.quoteVenue(ctx, venue, in, needRepay, false)
		if qerr != nil {
			return nil, qerr
		}
		sold := fixedpoint.BigToDecimal(soldWei)
		q.SwapFees = venue.SwapFees(sold)

		soldHuman = sold.Sub(q.SwapFees).Shift(-longDecimals)
		boughtHuman = fixedpoint.BigToDecimal(needRepay).Shift(-borrowDecimals)
		q.CloseReturns = swapWei.Sub(sold).Shift(-longDecimals)
		q.MaxSellAmount = sold.Shift(-longDecimals).Mul(fixedpoint.One.Add(slippage))
	}

	// Both sides are priced as token1 per token0.
	var actualPrice decimal.Decimal
	if long == domain.Token0 {
		actualPrice, err = quo(boughtHuman, soldHuman, op, venue.ID, "actual price")
	} else {
		actualPrice, err = quo(soldHuman, boughtHuman, op, venue.ID, "actual price")
	}
	if err != nil {
		return nil, err
	}
	q.PriceImpact = priceImpact(actualPrice, ref)

	return q, nil
}

// quoteVenue runs an exact-in (sell amount known) or exact-out (buy
// amount known) quote on a default venue.
func (r *Router) quoteVenue(ctx context.Context, venue domain.Venue, in CloseRouteInput, amount *big.Int, exactIn bool) (*big.Int, error) {
	const op = "close.quote"

	var (
		out *big.Int
		err error
	)
	switch {
	case venue.Class == domain.ConstantProduct && exactIn:
		out, err = r.cp.QuoteBuy(ctx, r.closeRequest(venue, in, amount))
	case venue.Class == domain.ConstantProduct:
		out, err = r.cp.QuoteSell(ctx, r.closeRequest(venue, in, amount))
	case venue.Class == domain.ConcentratedLiquidity && exactIn:
		out, err = r.cl.QuoteExactIn(ctx, in.SellToken, in.BuyToken, venue.Fee, amount)
	case venue.Class == domain.ConcentratedLiquidity:
		out, err = r.cl.QuoteExactOut(ctx, in.SellToken, in.BuyToken, venue.Fee, amount)
	default:
		return nil, apperror.New(apperror.CodeUnknownVenue, apperror.WithVenue(venue.ID), apperror.WithOperation(op))
	}
	if err != nil {
		return nil, apperror.Classify(err, apperror.CodeVenueQuoteFailed, venue.ID, op)
	}
	if out == nil || out.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeVenueQuoteFailed,
			apperror.WithVenue(venue.ID),
			apperror.WithOperation(op),
			apperror.WithContext("venue returned no output"))
	}
	return out, nil
}

func (r *Router) closeRequest(venue domain.Venue, in CloseRouteInput, amount *big.Int) ConstantProductRequest {
	return ConstantProductRequest{
		BuyToken:  in.BuyToken,
		SellToken: in.SellToken,
		BuyTax:    in.BuyFees,
		SellTax:   in.SellFees,
		Amount:    amount,
		CallData:  venue.CallData,
	}
}

func (r *Router) aggregatorCloseQuote(ctx context.Context, in CloseRouteInput) (*domain.CloseQuote, error) {
	const op = "close.aggregator"

	long := in.LongToken
	borrowSide := long.Other()
	slippage := domain.ClampSlippage(in.Close.Slippage)

	raw, err := r.agg.Quote(ctx, in.SellToken, in.BuyToken, in.SwapTotalInWei)
	if err != nil {
		return nil, apperror.Classify(err, apperror.CodeAggregatorQuoteFailed, domain.AggregatorVenueID, op)
	}
	if raw == nil || raw.ToAmount == nil || raw.ToAmount.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeAggregatorQuoteFailed,
			apperror.WithVenue(domain.AggregatorVenueID),
			apperror.WithOperation(op),
			apperror.WithContext("aggregator returned no output"))
	}

	cost, err := r.aggregatorGasCost(ctx, in.Pair, raw.Gas)
	if err != nil {
		return nil, apperror.Classify(err, apperror.CodeAggregatorQuoteFailed, domain.AggregatorVenueID, op)
	}

	// The close swap sells the long leg.
	price, err := aggregatorPrice(raw, in.SwapTotalInWei, long == domain.Token0)
	if err != nil {
		return nil, err
	}

	toWei := fixedpoint.BigToDecimal(raw.ToAmount)
	returns := toWei.Sub(in.RepayAmount).Shift(-in.Pair.Decimals(borrowSide))
	if long == in.DepositToken {
		if long == domain.Token0 {
			returns = fixedpoint.Div(returns, price)
		} else {
			returns = returns.Mul(price)
		}
	}

	toAmount := toWei.Shift(-in.Pair.Decimals(borrowSide))
	swapWei := fixedpoint.BigToDecimal(in.SwapTotalInWei)

	return &domain.CloseQuote{
		Dex:                  domain.AggregatorVenueID,
		Token0PriceOfToken1:  price,
		SwapFeesRate:         decimal.Zero,
		SwapFees:             decimal.Zero,
		CloseReturns:         returns,
		MinBuyAmount:         toAmount.Mul(fixedpoint.One.Sub(slippage)),
		MaxSellAmount:        swapWei.Shift(-in.Pair.Decimals(long)),
		SwapTotalAmountInWei: in.SwapTotalInWei,
		Aggregator: &domain.AggregatorLeg{
			FinalBackUSD:       toAmount.Mul(in.Pair.USD(borrowSide)).Sub(cost.estimatedUSD),
			ToTokenAmountInWei: raw.ToAmount,
			GasUSD:             cost.gasUSD,
		},
	}, nil
}
