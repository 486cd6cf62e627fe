package app

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
	"github.com/fd1az/margin-router/internal/logger"
)

// Router quotes every venue of a pair and picks the best one.
// Venues are quoted one after another in DexData order.
type Router struct {
	chain     ChainParams
	oracle    SpotPriceOracle
	cp        ConstantProductQuoter
	cl        ConcentratedLiquidityQuoter
	agg       AggregatorQuoter
	gas       GasPriceOracle
	liquidity PairLiquidityReader
	pools     PoolReader
	logger    logger.LoggerInterface
}

// RouterDeps groups the collaborators of a Router.
type RouterDeps struct {
	Oracle          SpotPriceOracle
	ConstantProduct ConstantProductQuoter
	Concentrated    ConcentratedLiquidityQuoter
	Aggregator      AggregatorQuoter
	Gas             GasPriceOracle
	Liquidity       PairLiquidityReader
	Pools           PoolReader
}

// NewRouter creates a Router.
func NewRouter(chain ChainParams, deps RouterDeps, log logger.LoggerInterface) *Router {
	return &Router{
		chain:     chain,
		oracle:    deps.Oracle,
		cp:        deps.ConstantProduct,
		cl:        deps.Concentrated,
		agg:       deps.Aggregator,
		gas:       deps.Gas,
		liquidity: deps.Liquidity,
		pools:     deps.Pools,
		logger:    log,
	}
}

// OpenRouteInput is everything the open router needs. Fees are the
// protocol's sell and buy tax rates of the swap legs.
type OpenRouteInput struct {
	Pair            domain.Pair
	Trade           domain.TradeInfo
	SwapTotalAmount decimal.Decimal
	SellFees        uint32
	BuyFees         uint32
	Market          domain.MarketInfo
	Borrow          domain.BorrowToTradeResult
}

// OptimalTradeRoute quotes the open swap on every venue of the pair.
//
// The default venue with the largest held amount wins; on a tie the
// earlier venue in DexData is kept. The aggregator, when listed, is
// compared by USD value and replaces the winner only when strictly better.
func (r *Router) OptimalTradeRoute(ctx context.Context, in OpenRouteInput) (*domain.OpenRoute, error) {
	if !in.SwapTotalAmount.IsPositive() {
		return nil, invariant("open.quote", "", "swap total amount must be positive")
	}

	slippage := domain.ClampSlippage(in.Trade.Slippage)
	route := &domain.OpenRoute{}
	bestHeld := decimal.Zero

	for _, id := range in.Pair.VenueIDs() {
		if id == domain.AggregatorVenueID {
			continue
		}
		venue, err := domain.ParseVenue(id, r.chain.ChainID)
		if err != nil {
			return nil, err
		}

		q, err := r.defaultQuote(ctx, in, venue, slippage)
		if err != nil {
			return nil, err
		}
		route.Set(id, q)

		if q.Held.GreaterThan(bestHeld) {
			bestHeld = q.Held
			route.Dex = id
		}
	}

	if in.Pair.HasVenue(domain.AggregatorVenueID) {
		q, err := r.aggregatorOpenQuote(ctx, in, slippage)
		if err != nil {
			return nil, err
		}

		long := in.Trade.LongToken
		longUSD := in.Pair.USD(long)
		defaultUSD := bestHeld.Mul(longUSD)
		aggUSD := q.Aggregator.FinalBackUSD
		if in.Trade.LongEqualsDeposit() {
			aggUSD = aggUSD.Add(in.Trade.DepositAmount.Mul(longUSD))
		}

		if aggUSD.GreaterThan(defaultUSD) {
			q.OverChange = &domain.OverChange{
				Amount: q.Held.Sub(bestHeld),
				Addr:   in.Pair.Address(long),
				Dex:    route.Dex,
			}
			route.Dex = domain.AggregatorVenueID
		}
		route.Set(domain.AggregatorVenueID, q)

		r.logger.Debug(ctx, "aggregator compared",
			"market", in.Pair.MarketID,
			"aggregator_usd", aggUSD.String(),
			"default_usd", defaultUSD.String(),
			"dex", route.Dex,
		)
	}

	return route, nil
}

// defaultQuote quotes one constant-product or concentrated-liquidity venue.
func (r *Router) defaultQuote(ctx context.Context, in OpenRouteInput, venue domain.Venue, slippage decimal.Decimal) (*domain.TradeQuote, error) {
	const op = "open.quote"

	ti := in.Trade
	long := ti.LongToken

	swapFeesRate := venue.SwapFeesRate()
	swapFees := venue.SwapFees(in.SwapTotalAmount)
	ref := referencePrice(ctx, r.oracle, r.logger, in.Pair, venue)
	amountIn, err := in.Pair.Amount(ti.BorrowSide(), in.SwapTotalAmount)
	if err != nil {
		return nil, invariant(op, venue.ID, "swap amount: "+err.Error())
	}
	amountInWei := amountIn.Raw()

	var boughtWei *big.Int
	switch venue.Class {
	case domain.ConstantProduct:
		boughtWei, err = r.cp.QuoteBuy(ctx, ConstantProductRequest{
			BuyToken:  ti.BuyToken,
			SellToken: ti.SellToken,
			BuyTax:    in.BuyFees,
			SellTax:   in.SellFees,
			Amount:    amountInWei,
			CallData:  venue.CallData,
		})
	case domain.ConcentratedLiquidity:
		boughtWei, err = r.cl.QuoteExactIn(ctx, ti.SellToken, ti.BuyToken, venue.Fee, amountInWei)
	default:
		return nil, apperror.New(apperror.CodeUnknownVenue, apperror.WithVenue(venue.ID), apperror.WithOperation(op))
	}
	if err != nil {
		return nil, apperror.Classify(err, apperror.CodeVenueQuoteFailed, venue.ID, op)
	}
	if boughtWei == nil || boughtWei.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeVenueQuoteFailed,
			apperror.WithVenue(venue.ID),
			apperror.WithOperation(op),
			apperror.WithContext("venue returned no output"))
	}

	actualBuy := in.Pair.Human(long, boughtWei)
	held := actualBuy
	if ti.LongEqualsDeposit() {
		held = actualBuy.Add(ti.DepositAmount.Sub(in.Borrow.DiscountLeverFees))
	}
	minBuy := actualBuy.Mul(fixedpoint.One.Sub(slippage))

	sold := in.SwapTotalAmount.Sub(swapFees).Mul(domain.FeeKeep(in.SellFees))
	bought := fixedpoint.Div(actualBuy, domain.FeeKeep(in.BuyFees))
	var actualPrice decimal.Decimal
	if long == domain.Token0 {
		actualPrice, err = quo(sold, bought, op, venue.ID, "actual price")
	} else {
		actualPrice, err = quo(bought, sold, op, venue.ID, "actual price")
	}
	if err != nil {
		return nil, err
	}

	liquidation, err := openLiquidationPrice(long, in.Market.MarginLimit, in.Borrow.Borrowing, held, venue.ID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "venue quoted",
		"venue", venue.ID,
		"class", venue.Class.String(),
		"amount_in", amountIn.String(),
		"amount_out", boughtWei.String(),
	)

	return &domain.TradeQuote{
		Dex:                  venue.ID,
		Token0PriceOfToken1:  ref,
		SwapFeesRate:         swapFeesRate,
		SwapFees:             swapFees,
		Held:                 held,
		MinBuyAmount:         minBuy,
		LiquidationPrice:     liquidation,
		PriceImpact:          priceImpact(actualPrice, ref),
		DexCallData:          venue.CallData,
		SwapTotalAmountInWei: amountInWei,
	}, nil
}

// openLiquidationPrice is (marginLimit/10000 + 1) × borrowing / held,
// inverted when the long leg is token1.
func openLiquidationPrice(long domain.Side, marginLimit, borrowing, held decimal.Decimal, venue string) (decimal.Decimal, error) {
	const op = "open.quote"
	token0Price, err := quo(fixedpoint.Div(marginLimit, fixedpoint.BasisPoints).Add(fixedpoint.One).Mul(borrowing), held, op, venue, "liquidation price")
	if err != nil || long == domain.Token0 {
		return token0Price, err
	}
	return quo(fixedpoint.One, token0Price, op, venue, "liquidation price")
}

// aggregatorCost is the aggregator's gas priced in USD.
type aggregatorCost struct {
	gasUSD       decimal.Decimal
	estimatedUSD decimal.Decimal
}

// aggregatorGasCost prices aggregator gas. GasUSD only counts gas above
// what a default venue swap costs; EstimatedUSD counts all of it.
func (r *Router) aggregatorGasCost(ctx context.Context, pair domain.Pair, gas uint64) (aggregatorCost, error) {
	venue, err := domain.ParseVenue(pair.DefaultVenueID(), r.chain.ChainID)
	if err != nil {
		return aggregatorCost{}, err
	}
	nativeUSD, err := r.oracle.SpotPrice(ctx, r.chain.NativeToken, r.chain.USDT, r.chain.NativeDecimals, r.chain.USDTDecimals, venue)
	if err != nil {
		r.logger.Warn(ctx, "native token price read failed", "error", err)
		nativeUSD = decimal.Zero
	}

	priceWei, err := r.gas.GasPrice(ctx)
	if err != nil {
		return aggregatorCost{}, apperror.Annotate(err, apperror.CodeGasEstimationFailed, domain.AggregatorVenueID, "aggregator.gas")
	}
	wei := fixedpoint.BigToDecimal(priceWei)

	usdPerGas := fixedpoint.Div(wei, weiPerEther).Mul(nativeUSD)
	total := decimal.NewFromInt(int64(gas))
	extra := decimal.Zero
	if gas > domain.DefaultDexGas {
		extra = decimal.NewFromInt(int64(gas - domain.DefaultDexGas))
	}

	return aggregatorCost{
		gasUSD:       extra.Mul(usdPerGas),
		estimatedUSD: total.Mul(usdPerGas),
	}, nil
}

// aggregatorPrice returns token0 priced in token1 implied by an
// aggregator answer. sellsToken0 tells which leg was sold.
func aggregatorPrice(q *domain.AggregatorQuote, amountIn *big.Int, sellsToken0 bool) (decimal.Decimal, error) {
	from := fixedpoint.FromMinorUnits(amountIn, q.FromDecimals)
	to := fixedpoint.FromMinorUnits(q.ToAmount, q.ToDecimals)
	if sellsToken0 {
		return quo(to, from, "aggregator", domain.AggregatorVenueID, "aggregator price")
	}
	return quo(from, to, "aggregator", domain.AggregatorVenueID, "aggregator price")
}

func (r *Router) aggregatorOpenQuote(ctx context.Context, in OpenRouteInput, slippage decimal.Decimal) (*domain.TradeQuote, error) {
	const op = "open.aggregator"

	ti := in.Trade
	long := ti.LongToken
	amountIn, err := in.Pair.Amount(ti.BorrowSide(), in.SwapTotalAmount)
	if err != nil {
		return nil, invariant(op, domain.AggregatorVenueID, "swap amount: "+err.Error())
	}
	amountInWei := amountIn.Raw()

	raw, err := r.agg.Quote(ctx, ti.SellToken, ti.BuyToken, amountInWei)
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

	// The open swap sells the borrowed leg, so token0 is sold when long is token1.
	token0PriceOfToken1, err := aggregatorPrice(raw, amountInWei, long == domain.Token1)
	if err != nil {
		return nil, err
	}

	toAmount := in.Pair.Human(long, raw.ToAmount)
	held := toAmount
	if ti.LongEqualsDeposit() {
		held = toAmount.Add(ti.DepositAmount.Sub(in.Borrow.DiscountLeverFees))
	}
	finalBackUSD := toAmount.Mul(in.Pair.USD(long)).Sub(cost.estimatedUSD)

	return &domain.TradeQuote{
		Dex:                  domain.AggregatorVenueID,
		Token0PriceOfToken1:  token0PriceOfToken1,
		SwapFeesRate:         decimal.Zero,
		SwapFees:             decimal.Zero,
		Held:                 held,
		MinBuyAmount:         toAmount.Mul(fixedpoint.One.Sub(slippage)),
		SwapTotalAmountInWei: amountInWei,
		Aggregator: &domain.AggregatorLeg{
			FinalBackUSD:       finalBackUSD,
			ToTokenAmountInWei: raw.ToAmount,
			GasUSD:             cost.gasUSD,
		},
	}, nil
}
