package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
	"github.com/fd1az/margin-router/internal/logger"
)

var weiPerGwei = fixedpoint.Pow10(9)

// TradePreview is the outcome of previewing an open trade. Fee rates are
// in basis points, BorrowInterest in percent per year.
type TradePreview struct {
	Borrowing             decimal.Decimal
	SwapTotalAmount       decimal.Decimal
	BorrowInterest        decimal.Decimal
	BorrowingAvailable    decimal.Decimal
	LeverFees             decimal.Decimal
	LeverFeesRate         decimal.Decimal
	DiscountLeverFees     decimal.Decimal
	DiscountLeverFeesRate decimal.Decimal
	MarginLimit           decimal.Decimal
	Dex                   string
	Route                 *domain.OpenRoute
}

// ClosePreview is the outcome of previewing a close. RepayAmount is in
// minor units of the borrowed leg.
type ClosePreview struct {
	CloseRatio        decimal.Decimal
	DiscountLeverFees decimal.Decimal
	RepayAmount       decimal.Decimal
	SwapTotalInWei    *big.Int
	Dex               string
	Route             *domain.CloseRoute
}

// OpenPlan is an unsigned marginTrade call. Amounts are in minor units.
type OpenPlan struct {
	To           common.Address
	MarketID     uint16
	LongToken    domain.Side
	DepositToken domain.Side
	Deposit      *big.Int
	Borrow       *big.Int
	MinBuyAmount *big.Int
	DexData      []byte
	Dex          string
	// Value is sent with the call when the deposit is the native token.
	Value    *big.Int
	CallData []byte
}

// ClosePlan is an unsigned closeTrade call. MinOrMaxAmount is the minimum
// bought when selling the whole close, or the maximum sold when only the
// debt is bought back.
type ClosePlan struct {
	To             common.Address
	MarketID       uint16
	LongToken      domain.Side
	CloseHeld      *big.Int
	MinOrMaxAmount *big.Int
	DexData        []byte
	Dex            string
	CallData       []byte
}

// TradeService runs the preview, position and planning flows on top of
// the calculator and the router.
type TradeService struct {
	chain     ChainParams
	calc      *Calculator
	router    *Router
	fees      TransferFeeReader
	positions PositionReader
	agg       AggregatorQuoter
	gas       GasPriceOracle
	encoder   TradeEncoder
	logger    logger.LoggerInterface
}

// ServiceDeps groups the collaborators of a TradeService.
type ServiceDeps struct {
	Calculator *Calculator
	Router     *Router
	Fees       TransferFeeReader
	Positions  PositionReader
	Aggregator AggregatorQuoter
	Gas        GasPriceOracle
	Encoder    TradeEncoder
}

// NewTradeService creates a TradeService.
func NewTradeService(chain ChainParams, deps ServiceDeps, log logger.LoggerInterface) *TradeService {
	return &TradeService{
		chain:     chain,
		calc:      deps.Calculator,
		router:    deps.Router,
		fees:      deps.Fees,
		positions: deps.Positions,
		agg:       deps.Aggregator,
		gas:       deps.Gas,
		encoder:   deps.Encoder,
		logger:    log,
	}
}

// Preview quotes an open trade. It returns nil when the market does not
// exist.
func (s *TradeService) Preview(ctx context.Context, pair domain.Pair, ti domain.TradeInfo, trader common.Address) (*TradePreview, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if err := ti.Validate(pair); err != nil {
		return nil, err
	}

	market, err := s.calc.MarketInfo(ctx, pair.MarketID, trader)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, "", "open.market")
	}
	if market == nil {
		return nil, nil
	}

	borrowSide := ti.BorrowSide()
	borrowPool := pair.Pool(borrowSide)
	pool, err := s.calc.PoolInfo(ctx, borrowPool, pair.Decimals(borrowSide))
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, "", "open.pool")
	}

	borrow, err := s.calc.CalculateBorrowing(ctx, pair, ti, market.DiscountLeverFeesRate)
	if err != nil {
		return nil, err
	}
	leverFees := fixedpoint.Div(borrow.LeverTotalAmount.Mul(market.LeverFeesRate), fixedpoint.BasisPoints)

	if err := s.router.CheckLiquidityLimit(ctx, pair, ti.SellToken, borrow.Borrowing, borrowPool, trader); err != nil {
		return nil, err
	}

	buyFees, err := s.tokenFees(ctx, pair.MarketID, ti.BuyToken, domain.BuyFee)
	if err != nil {
		return nil, err
	}
	sellFees, err := s.tokenFees(ctx, pair.MarketID, ti.SellToken, domain.SellFee)
	if err != nil {
		return nil, err
	}

	route, err := s.router.OptimalTradeRoute(ctx, OpenRouteInput{
		Pair:            pair,
		Trade:           ti,
		SwapTotalAmount: borrow.SwapTotalAmount,
		SellFees:        sellFees,
		BuyFees:         buyFees,
		Market:          *market,
		Borrow:          borrow,
	})
	if err != nil {
		return nil, err
	}

	if err := s.calc.CheckNeedToUpdatePrice(ctx, route, pair, ti, borrow, *market); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "trade previewed",
		"market", pair.MarketID,
		"dex", route.Dex,
		"venues", route.Len(),
		"borrowing", borrow.Borrowing.String(),
		"buy_fees", buyFees,
		"sell_fees", sellFees,
	)

	return &TradePreview{
		Borrowing:             borrow.Borrowing,
		SwapTotalAmount:       borrow.SwapTotalAmount,
		BorrowInterest:        pool.BorrowInterest,
		BorrowingAvailable:    pool.BorrowingAvailable,
		LeverFees:             leverFees,
		LeverFeesRate:         market.LeverFeesRate,
		DiscountLeverFees:     borrow.DiscountLeverFees,
		DiscountLeverFeesRate: market.DiscountLeverFeesRate,
		MarginLimit:           market.MarginLimit,
		Dex:                   route.Dex,
		Route:                 route,
	}, nil
}

// ClosePreview quotes closing part or all of a position. It returns nil
// when the market does not exist.
func (s *TradeService) ClosePreview(ctx context.Context, pair domain.Pair, ci domain.CloseTradeInfo, position *domain.PositionView, detail domain.OffChainPositionDetail) (*ClosePreview, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if err := ci.Validate(); err != nil {
		return nil, err
	}
	if position == nil || !position.Held.IsPositive() {
		return nil, apperror.New(apperror.CodePositionNotFound, apperror.WithOperation("close.preview"))
	}
	if ci.CloseAmount.GreaterThan(position.Held) {
		return nil, apperror.New(apperror.CodeInvalidTrade,
			apperror.WithOperation("close.preview"),
			apperror.WithContext("close amount exceeds held amount"))
	}

	closeRatio := fixedpoint.One
	if !ci.CloseAmount.Equal(position.Held) {
		closeRatio = fixedpoint.Div(ci.CloseAmount, position.Held)
	}

	market, err := s.calc.MarketInfo(ctx, pair.MarketID, detail.Trader)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, "", "close.market")
	}
	if market == nil {
		return nil, nil
	}

	long := detail.LongToken
	discount := fixedpoint.Div(ci.CloseAmount.Mul(market.DiscountLeverFeesRate), fixedpoint.BasisPoints)
	swapTotal := ci.CloseAmount.Sub(discount)
	swapWei, err := minorUnits(pair, long, swapTotal, "close.preview", "swap amount")
	if err != nil {
		return nil, err
	}

	buyToken, sellToken := domain.CloseLegs(pair, long)
	txFees, err := s.tokenFees(ctx, pair.MarketID, buyToken, domain.TransferFee)
	if err != nil {
		return nil, err
	}
	buyFees, err := s.tokenFees(ctx, pair.MarketID, buyToken, domain.BuyFee)
	if err != nil {
		return nil, err
	}
	sellFees, err := s.tokenFees(ctx, pair.MarketID, sellToken, domain.SellFee)
	if err != nil {
		return nil, err
	}

	repay := fixedpoint.BigToDecimal(position.OnChain.Borrowed).Mul(closeRatio)

	route, err := s.router.OptimalCloseRoute(ctx, CloseRouteInput{
		Pair:           pair,
		Close:          ci,
		LongToken:      long,
		DepositToken:   detail.DepositToken,
		SwapTotalInWei: swapWei,
		SellFees:       sellFees,
		BuyFees:        buyFees,
		TxFees:         txFees,
		RepayAmount:    repay,
		BuyToken:       buyToken,
		SellToken:      sellToken,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "close previewed",
		"market", pair.MarketID,
		"dex", route.Dex,
		"close_ratio", closeRatio.String(),
		"repay", repay.String(),
	)

	return &ClosePreview{
		CloseRatio:        closeRatio,
		DiscountLeverFees: discount,
		RepayAmount:       repay,
		SwapTotalInWei:    swapWei,
		Dex:               route.Dex,
		Route:             route,
	}, nil
}

// Position reads and derives the trader's position on one side of a
// market.
func (s *TradeService) Position(ctx context.Context, pair domain.Pair, long, dep domain.Side, trader common.Address) (*domain.PositionView, error) {
	const op = "position"

	if err := pair.Validate(); err != nil {
		return nil, err
	}
	venue, err := domain.ParseVenue(pair.DefaultVenueID(), s.chain.ChainID)
	if err != nil {
		return nil, err
	}

	pos, err := s.positions.TraderPosition(ctx, pair.MarketID, trader, long, venue.CallData)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, venue.ID, op)
	}
	if pos == nil || pos.IsEmpty() {
		return nil, apperror.New(apperror.CodePositionNotFound,
			apperror.WithOperation(op),
			apperror.WithContext("no position for "+trader.Hex()))
	}

	return s.calc.CalculatePosition(ctx, pair, long, dep, *pos, trader)
}

// PlanOpen turns a preview into an unsigned marginTrade call. An empty
// dex uses the preview's chosen venue.
func (s *TradeService) PlanOpen(ctx context.Context, pair domain.Pair, ti domain.TradeInfo, preview *TradePreview, dex string) (*OpenPlan, error) {
	const op = "open.plan"

	if preview == nil || preview.Route == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithOperation(op), apperror.WithContext("missing preview"))
	}
	if dex == "" {
		dex = preview.Dex
	}
	q, ok := preview.Route.Get(dex)
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownVenue, apperror.WithVenue(dex), apperror.WithOperation(op))
	}

	dexData := []byte(q.DexCallData)
	if dex == domain.AggregatorVenueID {
		var err error
		dexData, err = s.aggregatorCallData(ctx, ti.SellToken, ti.BuyToken, q.SwapTotalAmountInWei, ti.Slippage, op)
		if err != nil {
			return nil, err
		}
	}

	deposit, err := minorUnits(pair, ti.DepositToken, ti.DepositAmount, op, "deposit")
	if err != nil {
		return nil, err
	}
	borrow, err := minorUnits(pair, ti.BorrowSide(), preview.Borrowing, op, "borrowing")
	if err != nil {
		return nil, err
	}
	minBuy, err := minorUnits(pair, ti.LongToken, q.MinBuyAmount, op, "min buy amount")
	if err != nil {
		return nil, err
	}

	plan := &OpenPlan{
		To:           s.chain.OpenLev,
		MarketID:     pair.MarketID,
		LongToken:    ti.LongToken,
		DepositToken: ti.DepositToken,
		Deposit:      deposit,
		Borrow:       borrow,
		MinBuyAmount: minBuy,
		DexData:      dexData,
		Dex:          dex,
		Value:        new(big.Int),
	}
	if ti.DepositTokenAddress == s.chain.NativeToken {
		plan.Value = plan.Deposit
		plan.Deposit = new(big.Int)
	}

	data, err := s.encoder.EncodeMarginTrade(plan)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeABIError, dex, op)
	}
	plan.CallData = data

	s.logger.Info(ctx, "open planned",
		"market", pair.MarketID,
		"dex", dex,
		"deposit", plan.Deposit.String(),
		"borrow", plan.Borrow.String(),
		"min_buy", plan.MinBuyAmount.String(),
		"value", plan.Value.String(),
	)
	return plan, nil
}

// PlanClose turns a close preview into an unsigned closeTrade call. An
// empty dex uses the preview's chosen venue.
func (s *TradeService) PlanClose(ctx context.Context, pair domain.Pair, ci domain.CloseTradeInfo, position *domain.PositionView, detail domain.OffChainPositionDetail, preview *ClosePreview, dex string) (*ClosePlan, error) {
	const op = "close.plan"

	if preview == nil || preview.Route == nil || position == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithOperation(op), apperror.WithContext("missing preview or position"))
	}
	if dex == "" {
		dex = preview.Dex
	}
	q, ok := preview.Route.Get(dex)
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownVenue, apperror.WithVenue(dex), apperror.WithOperation(op))
	}

	long := detail.LongToken
	closeHeld := position.OnChain.Held
	if !preview.CloseRatio.Equal(fixedpoint.One) {
		closeHeld = fixedpoint.BigToDecimal(position.OnChain.Held).Mul(preview.CloseRatio).Truncate(0).BigInt()
	}

	var (
		limit *big.Int
		err   error
	)
	if long == detail.DepositToken {
		limit, err = minorUnits(pair, long, q.MaxSellAmount, op, "max sell amount")
	} else {
		limit, err = minorUnits(pair, long.Other(), q.MinBuyAmount, op, "min buy amount")
	}
	if err != nil {
		return nil, err
	}

	dexData := []byte(q.DexCallData)
	if dex == domain.AggregatorVenueID {
		buy, sell := domain.CloseLegs(pair, long)
		dexData, err = s.aggregatorCallData(ctx, sell, buy, preview.SwapTotalInWei, ci.Slippage, op)
		if err != nil {
			return nil, err
		}
	}

	plan := &ClosePlan{
		To:             s.chain.OpenLev,
		MarketID:       pair.MarketID,
		LongToken:      long,
		CloseHeld:      closeHeld,
		MinOrMaxAmount: limit,
		DexData:        dexData,
		Dex:            dex,
	}
	data, err := s.encoder.EncodeCloseTrade(plan)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeABIError, dex, op)
	}
	plan.CallData = data

	s.logger.Info(ctx, "close planned",
		"market", pair.MarketID,
		"dex", dex,
		"close_held", closeHeld.String(),
		"min_or_max", limit.String(),
	)
	return plan, nil
}

// aggregatorCallData fetches executable swap data from the aggregator and
// prefixes it with the aggregator's dex flag.
func (s *TradeService) aggregatorCallData(ctx context.Context, sell, buy common.Address, amount *big.Int, slippage decimal.Decimal, op string) ([]byte, error) {
	venue, err := domain.ParseVenue(domain.AggregatorVenueID, s.chain.ChainID)
	if err != nil {
		return nil, err
	}

	priceWei, err := s.gas.GasPrice(ctx)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeGasEstimationFailed, venue.ID, op)
	}

	swap, err := s.agg.Swap(ctx, SwapRequest{
		SellToken:       sell,
		BuyToken:        buy,
		Amount:          amount,
		From:            s.chain.OpenLev,
		SlippagePercent: domain.ClampSlippage(slippage).Mul(fixedpoint.Hundred),
		GasPriceGwei:    fixedpoint.Div(fixedpoint.BigToDecimal(priceWei), weiPerGwei),
	})
	if err != nil {
		return nil, apperror.Classify(err, apperror.CodeAggregatorSwapFailed, venue.ID, op)
	}
	if swap == nil || len(swap.Data) == 0 {
		return nil, apperror.New(apperror.CodeAggregatorSwapFailed,
			apperror.WithVenue(venue.ID),
			apperror.WithOperation(op),
			apperror.WithContext("aggregator returned no swap data"))
	}

	out := make([]byte, 0, len(venue.CallData)+len(swap.Data))
	out = append(out, venue.CallData...)
	return append(out, swap.Data...), nil
}

func (s *TradeService) tokenFees(ctx context.Context, marketID uint16, token common.Address, kind domain.TransferFeeKind) (uint32, error) {
	rate, err := s.fees.TransferFeeRate(ctx, marketID, token, kind)
	if err != nil {
		return 0, apperror.Annotate(err, apperror.CodeContractCallFailed, "", "fees."+kind.String())
	}
	return rate, nil
}

// minorUnits converts d units of leg s for an outgoing call. A negative
// amount means an earlier step went wrong.
func minorUnits(pair domain.Pair, s domain.Side, d decimal.Decimal, op, what string) (*big.Int, error) {
	amount, err := pair.Amount(s, d)
	if err != nil {
		return nil, invariant(op, "", what+": "+err.Error())
	}
	return amount.Raw(), nil
}
