package protocol

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/evm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/logger"
)

var (
	_ app.PriceHistoryReader = (*QueryHelper)(nil)
	_ app.PositionReader     = (*QueryHelper)(nil)
)

// QueryHelper reads aggregated protocol state.
type QueryHelper struct {
	address  common.Address
	openLev  common.Address
	contract *evm.Contract
	logger   logger.LoggerInterface
}

// NewQueryHelper binds the query helper at address for the protocol at
// openLev.
func NewQueryHelper(caller evm.ContractCaller, address, openLev common.Address, log logger.LoggerInterface) (*QueryHelper, error) {
	contract, err := evm.NewContract("query-helper", QueryHelperABI, caller)
	if err != nil {
		return nil, err
	}
	return &QueryHelper{address: address, openLev: openLev, contract: contract, logger: log}, nil
}

// AveragePrices reads the current price and its time-weighted averages of
// buyToken in sellToken.
func (q *QueryHelper) AveragePrices(ctx context.Context, marketID uint16, buyToken, sellToken common.Address, twap time.Duration, callData []byte) (*domain.PriceSnapshot, error) {
	seconds := twap.Seconds()
	if seconds < 0 || seconds > math.MaxUint32 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("twap %s out of range", twap)))
	}

	out, err := q.contract.Call(ctx, q.address, "calPriceCAvgPriceHAvgPrice",
		q.openLev, marketID, buyToken, sellToken, uint32(seconds), nonNil(callData))
	if err != nil {
		return nil, err
	}

	vals := make([]*big.Int, 5)
	for i := range vals {
		if vals[i], err = evm.BigAt(out, i, "calPriceCAvgPriceHAvgPrice"); err != nil {
			return nil, err
		}
	}
	if !vals[3].IsInt64() || vals[3].Int64() > 77 {
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithContext("price decimals "+vals[3].String()))
	}

	snap := &domain.PriceSnapshot{
		Price:     vals[0],
		CAvgPrice: vals[1],
		HAvgPrice: vals[2],
		Decimals:  int32(vals[3].Int64()),
		UpdatedAt: time.Unix(vals[4].Int64(), 0),
	}

	q.logger.Debug(ctx, "price history read",
		"market", marketID,
		"price", snap.Price.String(),
		"c_avg", snap.CAvgPrice.String(),
		"h_avg", snap.HAvgPrice.String(),
		"updated_at", snap.UpdatedAt.Unix(),
	)
	return snap, nil
}

// TraderPosition reads the trader's position on the long leg.
func (q *QueryHelper) TraderPosition(ctx context.Context, marketID uint16, trader common.Address, long domain.Side, callData []byte) (*domain.OnChainPosition, error) {
	out, err := q.contract.Call(ctx, q.address, "getTraderPositons",
		q.openLev, marketID, []common.Address{trader}, []bool{long == domain.Token1}, nonNil(callData))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithContext(fmt.Sprintf("getTraderPositons: got %d outputs", len(out))))
	}

	vars := *abi.ConvertType(out[0], new([]PositionVars)).(*[]PositionVars)
	if len(vars) == 0 {
		return &domain.OnChainPosition{}, nil
	}

	v := vars[0]
	return &domain.OnChainPosition{
		Deposited:   v.Deposited,
		Held:        v.Held,
		Borrowed:    v.Borrowed,
		MarginRatio: v.MarginRatio,
		MarginLimit: v.MarginLimit,
	}, nil
}
