package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/fixedpoint"
	"github.com/fd1az/margin-router/internal/logger"
)

var impactScale = decimal.NewFromInt(200)

// referencePrice reads token0 priced in token1 through venue. A failed
// read is logged and yields zero; callers that cannot work without the
// price must check for it.
func referencePrice(ctx context.Context, oracle SpotPriceOracle, log logger.LoggerInterface, pair domain.Pair, venue domain.Venue) decimal.Decimal {
	price, err := oracle.SpotPrice(ctx, pair.Address(domain.Token0), pair.Address(domain.Token1),
		pair.Decimals(domain.Token0), pair.Decimals(domain.Token1), venue)
	if err != nil {
		log.Warn(ctx, "spot price read failed",
			"market", pair.MarketID,
			"venue", venue.ID,
			"error", err,
		)
		return decimal.Zero
	}
	return price
}

// priceImpact returns |(actual - ref) / ref × 200| to 2 places. It is zero
// when no reference price is available.
func priceImpact(actual, ref decimal.Decimal) decimal.Decimal {
	if ref.IsZero() {
		return decimal.Zero
	}
	return fixedpoint.Div(actual.Sub(ref), ref).Mul(impactScale).Round(2).Abs()
}

func invariant(op, venue, reason string) *apperror.AppError {
	return apperror.New(apperror.CodeCalculationInvariant,
		apperror.WithOperation(op),
		apperror.WithVenue(venue),
		apperror.WithContext(reason))
}

// quo divides, reporting a zero divisor as a calculation invariant.
func quo(a, b decimal.Decimal, op, venue, what string) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, invariant(op, venue, what+": division by zero")
	}
	return fixedpoint.Div(a, b), nil
}
