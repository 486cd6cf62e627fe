package app

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
)

var maxLiquidityShare = decimal.NewFromInt(domain.MaxLiquidityShare)

// CheckLiquidityLimit rejects an open trade whose borrow, alone or added
// to the trader's outstanding borrow, exceeds MaxLiquidityShare percent of
// the sold leg's reserve in the pair.
//
// It only runs when the pair trades on a single constant-product venue
// with a known factory; a pair the factory does not know is skipped.
func (r *Router) CheckLiquidityLimit(ctx context.Context, pair domain.Pair, sellToken common.Address, borrowing decimal.Decimal, borrowPool, trader common.Address) error {
	const op = "open.liquidity"

	ids := pair.VenueIDs()
	if len(ids) != 1 {
		return nil
	}
	venue, err := domain.ParseVenue(ids[0], r.chain.ChainID)
	if err != nil {
		return err
	}
	if venue.Class != domain.ConstantProduct || !venue.HasFactory() {
		return nil
	}

	token0, token1 := pair.Address(domain.Token0), pair.Address(domain.Token1)
	reserves, err := r.liquidity.Reserves(ctx, venue.Factory, token0, token1)
	if err != nil {
		return apperror.Annotate(err, apperror.CodeContractCallFailed, venue.ID, op)
	}
	if reserves == nil || reserves.Pair == (common.Address{}) {
		return nil
	}

	// Pair contracts order reserves by token address.
	r0, r1 := reserves.Reserve0, reserves.Reserve1
	if bytes.Compare(token0.Bytes(), token1.Bytes()) > 0 {
		r0, r1 = r1, r0
	}
	liquidity := fixedpoint.FromMinorUnits(r0, pair.Decimals(domain.Token0))
	sellSide := domain.Token0
	if sellToken == token1 {
		liquidity = fixedpoint.FromMinorUnits(r1, pair.Decimals(domain.Token1))
		sellSide = domain.Token1
	}

	share, err := quo(borrowing.Mul(fixedpoint.Hundred), liquidity, op, venue.ID, "pair liquidity")
	if err != nil {
		return err
	}
	if share.GreaterThan(maxLiquidityShare) {
		return insufficientLiquidity(venue.ID, share)
	}

	current, err := r.pools.BorrowBalanceCurrent(ctx, borrowPool, trader)
	if err != nil {
		return apperror.Annotate(err, apperror.CodeContractCallFailed, venue.ID, op)
	}
	existing := fixedpoint.FromMinorUnits(current, pair.Decimals(sellSide))

	share = fixedpoint.Div(borrowing.Add(existing).Mul(fixedpoint.Hundred), liquidity)
	if share.GreaterThan(maxLiquidityShare) {
		return insufficientLiquidity(venue.ID, share)
	}

	r.logger.Debug(ctx, "liquidity checked",
		"venue", venue.ID,
		"pair", reserves.Pair.Hex(),
		"share_percent", share.StringFixed(4),
	)
	return nil
}

func insufficientLiquidity(venue string, share decimal.Decimal) error {
	return apperror.New(apperror.CodeInsufficientLiquidity,
		apperror.WithVenue(venue),
		apperror.WithOperation("open.liquidity"),
		apperror.WithContext("borrow would use "+share.StringFixed(2)+"% of pair liquidity"))
}
