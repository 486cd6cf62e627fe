// Package protocol reads the margin protocol contracts (OpenLev, its
// query helper and lending pools) and encodes unsigned trade calls.
package protocol

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/evm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/cache"
	"github.com/fd1az/margin-router/internal/logger"
)

// DefaultMarketTTL is how long market parameters are cached. Fee rates and
// margin limits change by governance only.
const DefaultMarketTTL = 5 * time.Minute

var (
	_ app.MarketReader      = (*OpenLev)(nil)
	_ app.TransferFeeReader = (*OpenLev)(nil)
	_ app.ShareAccounting   = (*OpenLev)(nil)
	_ app.TradeEncoder      = (*OpenLev)(nil)
)

// OpenLev reads the margin protocol contract.
type OpenLev struct {
	address   common.Address
	contract  *evm.Contract
	erc20     *evm.Contract
	markets   *cache.Cache[uint16, *domain.MarketParams]
	marketTTL time.Duration
	logger    logger.LoggerInterface
}

// NewOpenLev binds the protocol at address.
func NewOpenLev(caller evm.ContractCaller, address common.Address, marketTTL time.Duration, log logger.LoggerInterface) (*OpenLev, error) {
	contract, err := evm.NewContract("openlev", OpenLevABI, caller)
	if err != nil {
		return nil, err
	}
	erc20, err := evm.NewContract("erc20", ERC20ABI, caller)
	if err != nil {
		return nil, err
	}

	return &OpenLev{
		address:   address,
		contract:  contract,
		erc20:     erc20,
		markets:   cache.New[uint16, *domain.MarketParams](time.Minute),
		marketTTL: marketTTL,
		logger:    log,
	}, nil
}

// Market reads markets(marketID). A market with no pools does not exist.
func (o *OpenLev) Market(ctx context.Context, marketID uint16) (*domain.MarketParams, error) {
	if m, ok := o.markets.Get(ctx, marketID); ok {
		return m, nil
	}

	out, err := o.contract.Call(ctx, o.address, "markets", marketID)
	if err != nil {
		return nil, apperror.Annotate(err, apperror.CodeContractCallFailed, "", "market")
	}
	if len(out) != 10 {
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithContext(fmt.Sprintf("markets: got %d outputs", len(out))))
	}

	addrs := make([]common.Address, 0, 5)
	for _, i := range []int{0, 1, 2, 3, 7} {
		a, err := evm.AddressAt(out, i, "markets")
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	limits := make([]uint16, 0, 3)
	for _, i := range []int{4, 5, 6} {
		v, ok := out[i].(uint16)
		if !ok {
			return nil, apperror.New(apperror.CodeABIError,
				apperror.WithContext(fmt.Sprintf("markets: output %d is %T", i, out[i])))
		}
		limits = append(limits, v)
	}
	ins0, err := evm.BigAt(out, 8, "markets")
	if err != nil {
		return nil, err
	}
	ins1, err := evm.BigAt(out, 9, "markets")
	if err != nil {
		return nil, err
	}

	if addrs[0] == (common.Address{}) && addrs[1] == (common.Address{}) {
		o.logger.Debug(ctx, "market not found", "market", marketID)
		return nil, nil
	}

	m := &domain.MarketParams{
		Pool0:          addrs[0],
		Pool1:          addrs[1],
		Token0:         addrs[2],
		Token1:         addrs[3],
		MarginLimit:    limits[0],
		FeesRate:       limits[1],
		PriceDiffRatio: limits[2],
		PriceUpdater:   addrs[4],
		Pool0Insurance: ins0,
		Pool1Insurance: ins1,
	}
	o.markets.Set(ctx, marketID, m, o.marketTTL)

	o.logger.Debug(ctx, "market loaded",
		"market", marketID,
		"fees_rate", m.FeesRate,
		"margin_limit", m.MarginLimit,
	)
	return m, nil
}

// TransferFeeRate reads taxes(marketID, token, kind).
func (o *OpenLev) TransferFeeRate(ctx context.Context, marketID uint16, token common.Address, kind domain.TransferFeeKind) (uint32, error) {
	rate, err := o.contract.CallBig(ctx, o.address, "taxes", marketID, token, big.NewInt(int64(kind)))
	if err != nil {
		return 0, err
	}
	if !rate.IsUint64() || rate.Uint64() >= domain.FeeRatePrecision {
		return 0, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("%s tax %s out of range for %s", kind, rate, token.Hex())))
	}
	return uint32(rate.Uint64()), nil
}

// ShareSupply returns the protocol's token balance and its total held
// shares of token.
func (o *OpenLev) ShareSupply(ctx context.Context, token common.Address) (*domain.ShareSupply, error) {
	shares, err := o.contract.CallBig(ctx, o.address, "totalHelds", token)
	if err != nil {
		return nil, err
	}
	balance, err := o.erc20.CallBig(ctx, token, "balanceOf", o.address)
	if err != nil {
		return nil, err
	}
	return &domain.ShareSupply{TotalBalance: balance, TotalShares: shares}, nil
}

// EncodeMarginTrade packs marginTrade for plan.
func (o *OpenLev) EncodeMarginTrade(plan *app.OpenPlan) ([]byte, error) {
	return o.contract.Pack("marginTrade",
		plan.MarketID,
		plan.LongToken == domain.Token1,
		plan.DepositToken == domain.Token1,
		orZero(plan.Deposit),
		orZero(plan.Borrow),
		orZero(plan.MinBuyAmount),
		nonNil(plan.DexData),
	)
}

// EncodeCloseTrade packs closeTrade for plan.
func (o *OpenLev) EncodeCloseTrade(plan *app.ClosePlan) ([]byte, error) {
	return o.contract.Pack("closeTrade",
		plan.MarketID,
		plan.LongToken == domain.Token1,
		orZero(plan.CloseHeld),
		orZero(plan.MinOrMaxAmount),
		nonNil(plan.DexData),
	)
}

// Close stops the market cache janitor.
func (o *OpenLev) Close() {
	o.markets.Close()
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
