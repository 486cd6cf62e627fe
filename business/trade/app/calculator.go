package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
	"github.com/fd1az/margin-router/internal/logger"
)

var weiPerEther = fixedpoint.Pow10(18)

// Calculator sizes borrows and derives position economics.
type Calculator struct {
	chain   ChainParams
	markets MarketReader
	fees    TransferFeeReader
	oracle  SpotPriceOracle
	shares  ShareAccounting
	pools   PoolReader
	history PriceHistoryReader
	clock   Clock
	logger  logger.LoggerInterface
}

// CalculatorDeps groups the collaborators of a Calculator.
type CalculatorDeps struct {
	Markets MarketReader
	Fees    TransferFeeReader
	Oracle  SpotPriceOracle
	Shares  ShareAccounting
	Pools   PoolReader
	History PriceHistoryReader
	Clock   Clock
}

// NewCalculator creates a Calculator. A nil Clock uses the wall clock.
func NewCalculator(chain ChainParams, deps CalculatorDeps, log logger.LoggerInterface) *Calculator {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calculator{
		chain:   chain,
		markets: deps.Markets,
		fees:    deps.Fees,
		oracle:  deps.Oracle,
		shares:  deps.Shares,
		pools:   deps.Pools,
		history: deps.History,
		clock:   clock,
		logger:  log,
	}
}

// MarketInfo reads a market for trader. It returns nil when the market
// does not exist.
func (c *Calculator) MarketInfo(ctx context.Context, marketID uint16, trader common.Address) (*domain.MarketInfo, error) {
	params, err := c.markets.Market(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if params == nil {
		c.logger.Info(ctx, "market not found", "market", marketID)
		return nil, nil
	}

	info := domain.NewMarketInfo(*params, trader)
	return &info, nil
}

// PoolInfo reads the borrow rate and available liquidity of a pool.
func (c *Calculator) PoolInfo(ctx context.Context, pool common.Address, decimals int32) (domain.PoolInfo, error) {
	rate, err := c.pools.BorrowRatePerBlock(ctx, pool)
	if err != nil {
		return domain.PoolInfo{}, err
	}
	available, err := c.pools.AvailableForBorrow(ctx, pool)
	if err != nil {
		return domain.PoolInfo{}, err
	}

	interest := fixedpoint.BigToDecimal(rate).
		Mul(decimal.NewFromInt(c.chain.BlocksPerYear)).
		Mul(fixedpoint.Hundred)
	interest = fixedpoint.Div(interest, weiPerEther)

	return domain.PoolInfo{
		BorrowInterest:     interest,
		BorrowingAvailable: fixedpoint.FromMinorUnits(available, decimals),
	}, nil
}

// CalculateBorrowing sizes the borrow and the swap of an open trade.
// discountRate is the lever fee rate, in basis points, that applies to
// the trader.
func (c *Calculator) CalculateBorrowing(ctx context.Context, pair domain.Pair, ti domain.TradeInfo, discountRate decimal.Decimal) (domain.BorrowToTradeResult, error) {
	const op = "open.borrow"

	borrowFee, err := c.fees.TransferFeeRate(ctx, pair.MarketID, pair.Address(ti.BorrowSide()), domain.TransferFee)
	if err != nil {
		return domain.BorrowToTradeResult{}, apperror.Annotate(err, apperror.CodeContractCallFailed, "", op)
	}
	depositFee, err := c.fees.TransferFeeRate(ctx, pair.MarketID, ti.DepositTokenAddress, domain.TransferFee)
	if err != nil {
		return domain.BorrowToTradeResult{}, apperror.Annotate(err, apperror.CodeContractCallFailed, "", op)
	}

	deposit := ti.DepositAmount
	levelMinusOne := decimal.NewFromInt(ti.Level - 1)

	var borrowing, leverTotal decimal.Decimal
	if !ti.LongEqualsDeposit() {
		borrowing = deposit.Mul(levelMinusOne)
		leverTotal = borrowing.Add(domain.AfterFee(deposit, depositFee))
	} else {
		venue, err := domain.ParseVenue(pair.DefaultVenueID(), c.chain.ChainID)
		if err != nil {
			return domain.BorrowToTradeResult{}, err
		}
		price := referencePrice(ctx, c.oracle, c.logger, pair, venue)
		if !price.IsPositive() {
			return domain.BorrowToTradeResult{}, invariant(op, venue.ID, "spot price unavailable")
		}

		if ti.DepositToken == domain.Token0 {
			borrowing = deposit.Mul(price).Mul(levelMinusOne)
		} else {
			borrowing = fixedpoint.Div(deposit, price).Mul(levelMinusOne)
		}
		leverTotal = deposit.Add(domain.AfterFee(deposit.Mul(levelMinusOne), borrowFee))
	}

	discountFees := fixedpoint.Div(leverTotal.Mul(discountRate), fixedpoint.BasisPoints)

	swapTotal := domain.AfterFee(borrowing, borrowFee)
	if !ti.LongEqualsDeposit() {
		swapTotal = swapTotal.Add(domain.AfterFee(deposit, depositFee)).Sub(discountFees)
	}

	c.logger.Debug(ctx, "borrowing calculated",
		"market", pair.MarketID,
		"borrowing", borrowing.String(),
		"swap_total", swapTotal.String(),
		"lever_total", leverTotal.String(),
		"borrow_fee", borrowFee,
		"deposit_fee", depositFee,
	)

	return domain.BorrowToTradeResult{
		Borrowing:         borrowing,
		SwapTotalAmount:   swapTotal,
		LeverTotalAmount:  leverTotal,
		DiscountLeverFees: discountFees,
	}, nil
}

// ShareToAmount converts a held share into a token amount, rounded down to
// the token's decimals.
func (c *Calculator) ShareToAmount(ctx context.Context, share decimal.Decimal, token common.Address, decimals int32) (decimal.Decimal, error) {
	supply, err := c.shares.ShareSupply(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	shares := fixedpoint.BigToDecimal(supply.TotalShares)
	if shares.IsZero() {
		return decimal.Zero, invariant("position.share", "", "no shares outstanding")
	}

	amount := fixedpoint.BigToDecimal(supply.TotalBalance).Mul(share)
	return fixedpoint.Div(amount, shares).Truncate(decimals), nil
}

// AmountToShare converts a token amount into a held share, rounded down
// to the token's decimals.
func (c *Calculator) AmountToShare(ctx context.Context, amount decimal.Decimal, token common.Address, decimals int32) (decimal.Decimal, error) {
	supply, err := c.shares.ShareSupply(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	balance := fixedpoint.BigToDecimal(supply.TotalBalance)
	if balance.IsZero() {
		return decimal.Zero, invariant("position.share", "", "empty token balance")
	}

	shares := fixedpoint.BigToDecimal(supply.TotalShares).Mul(amount)
	return fixedpoint.Div(shares, balance).Truncate(decimals), nil
}

// CalculatePosition derives the human-facing view of an on-chain position.
// Value figures are expressed in the deposit leg.
func (c *Calculator) CalculatePosition(ctx context.Context, pair domain.Pair, long, dep domain.Side, pos domain.OnChainPosition, trader common.Address) (*domain.PositionView, error) {
	const op = "position"

	borrowSide := long.Other()
	heldDecimals := pair.Decimals(long)
	borrowDecimals := pair.Decimals(borrowSide)

	venue, err := domain.ParseVenue(pair.DefaultVenueID(), c.chain.ChainID)
	if err != nil {
		return nil, err
	}
	price := referencePrice(ctx, c.oracle, c.logger, pair, venue)
	if !price.IsPositive() {
		return nil, invariant(op, venue.ID, "spot price unavailable")
	}

	share := fixedpoint.FromMinorUnits(pos.Held, heldDecimals)
	held, err := c.ShareToAmount(ctx, share, pair.Address(long), heldDecimals)
	if err != nil {
		return nil, err
	}

	stored, err := c.pools.BorrowBalanceStored(ctx, pair.Pool(borrowSide), trader)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, "", op)
	}

	deposited := fixedpoint.FromMinorUnits(pos.Deposited, pair.Decimals(dep))
	borrowedCurrent := fixedpoint.FromMinorUnits(pos.Borrowed, borrowDecimals)
	borrowedStored := fixedpoint.FromMinorUnits(stored, borrowDecimals)
	marginRatio := fixedpoint.Div(fixedpoint.BigToDecimal(pos.MarginRatio), fixedpoint.Hundred)
	marginLimit := fixedpoint.Div(fixedpoint.BigToDecimal(pos.MarginLimit), fixedpoint.Hundred)

	pnl := calcPnL(long, dep, price, held, deposited, borrowedCurrent)
	open, err := calcOpenPrice(long, dep, held, deposited, borrowedStored)
	if err != nil {
		return nil, err
	}
	liquidation, err := calcLiquidationPrice(long, marginLimit, borrowedCurrent, held)
	if err != nil {
		return nil, err
	}
	pnlPercent, err := quo(pnl.Mul(fixedpoint.Hundred), deposited, op, "", "pnl percent")
	if err != nil {
		return nil, err
	}

	return &domain.PositionView{
		MarginRatio:      marginRatio,
		MarginLimit:      marginLimit,
		CurrentPrice:     price,
		PnLValue:         pnl,
		PnLPercent:       pnlPercent.Round(2),
		Held:             held,
		Share:            share,
		Deposited:        deposited,
		DepositToken:     dep,
		OpenPrice:        open,
		LiquidationPrice: liquidation,
		PriceDex:         venue.PriceDex(),
		OnChain:          pos,
	}, nil
}

func calcPnL(long, dep domain.Side, price, held, deposited, borrowed decimal.Decimal) decimal.Decimal {
	switch {
	case long == domain.Token0 && dep == domain.Token0:
		return held.Sub(deposited).Sub(fixedpoint.Div(borrowed, price))
	case long == domain.Token0:
		return held.Mul(price).Sub(deposited).Sub(borrowed)
	case dep == domain.Token0:
		return fixedpoint.Div(held, price).Sub(deposited).Sub(borrowed)
	default:
		return held.Sub(deposited).Sub(borrowed.Mul(price))
	}
}

func calcOpenPrice(long, dep domain.Side, held, deposited, borrowedStored decimal.Decimal) (decimal.Decimal, error) {
	const op, what = "position", "open price"
	switch {
	case long == domain.Token0 && dep == domain.Token0:
		return quo(borrowedStored, held.Sub(deposited), op, "", what)
	case long == domain.Token0:
		return quo(deposited.Add(borrowedStored), held, op, "", what)
	case dep == domain.Token0:
		return quo(held, deposited.Add(borrowedStored), op, "", what)
	default:
		return quo(held.Sub(deposited), borrowedStored, op, "", what)
	}
}

func calcLiquidationPrice(long domain.Side, marginLimit, borrowed, held decimal.Decimal) (decimal.Decimal, error) {
	const op, what = "position", "liquidation price"
	multiplier := fixedpoint.One.Add(fixedpoint.Div(marginLimit, fixedpoint.Hundred))
	if long == domain.Token0 {
		return quo(multiplier.Mul(borrowed), held, op, "", what)
	}
	return quo(held, multiplier.Mul(borrowed), op, "", what)
}

// CheckNeedToUpdatePrice flags the open quotes whose notional value at
// the protocol's averaged price leaves less margin than the market
// requires, so the trader can refresh the on-chain price first.
func (c *Calculator) CheckNeedToUpdatePrice(ctx context.Context, route *domain.OpenRoute, pair domain.Pair, ti domain.TradeInfo, borrow domain.BorrowToTradeResult, market domain.MarketInfo) error {
	const op = "open.price_guard"

	if route == nil || route.Len() == 0 {
		return nil
	}

	for _, entry := range route.Entries() {
		if entry.Venue == domain.AggregatorVenueID {
			continue
		}
		q := entry.Quote

		venue, err := domain.ParseVenue(entry.Venue, c.chain.ChainID)
		if err != nil {
			return err
		}

		snap, err := c.history.AveragePrices(ctx, pair.MarketID, ti.BuyToken, ti.SellToken, c.chain.TWAP, q.DexCallData)
		if err != nil {
			return apperror.Annotate(err, apperror.CodePriceHistoryReadFailed, venue.ID, op)
		}

		cAvg := fixedpoint.BigToDecimal(snap.CAvgPrice)
		d0, d1 := pair.Decimals(domain.Token0), pair.Decimals(domain.Token1)
		if ti.LongToken == domain.Token0 {
			cAvg = cAvg.Mul(fixedpoint.Pow10(d0 - d1))
		} else {
			cAvg = cAvg.Mul(fixedpoint.Pow10(d1 - d0))
		}

		marketValue := q.Held.Mul(cAvg).Shift(-snap.Decimals)
		buffer, err := quo(marketValue.Sub(borrow.Borrowing).Mul(fixedpoint.BasisPoints), borrow.Borrowing, op, venue.ID, "margin buffer")
		if err != nil {
			return err
		}

		should := buffer.LessThan(market.MarginLimit)
		var waiting int64

		switch {
		case should && venue.Class != domain.ConstantProduct:
			waiting = domain.ConcentratedLiquidityWait
			should = false
		case should && venue.Class == domain.ConstantProduct:
			elapsed := c.clock.Now().Sub(snap.UpdatedAt)
			if elapsed < domain.PriceUpdateCooldown {
				remaining := domain.PriceUpdateCooldown - elapsed
				waiting = int64((remaining + time.Second - 1) / time.Second)
				should = false
			}
		}

		if should && q.PriceImpact.Abs().GreaterThan(decimal.NewFromInt(domain.MaxUpdatePriceImpact)) {
			should = false
		}

		q.ShouldUpdatePrice = should
		q.WaitingSecond = waiting

		c.logger.Debug(ctx, "price guard",
			"venue", venue.ID,
			"margin_buffer", buffer.String(),
			"should_update", should,
			"waiting_second", waiting,
		)
	}

	return nil
}
